// Package drainer broadcasts the staging queue and removes what landed.
package drainer

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	relayerrors "github.com/pushchain/pdurable/relayer/errors"
	"github.com/pushchain/pdurable/relayer/metrics"
	"github.com/pushchain/pdurable/relayer/queue"
)

const (
	chainName       = "solana"
	defaultInterval = 30 * time.Second
)

// Config holds configuration for the drainer.
type Config struct {
	Queue          queue.Queue
	Cluster        svm.Cluster
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	SkipPreflight  bool
	// Interval is the period between passes started by Start.
	Interval time.Duration
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Failure is a record that did not land in this pass.
type Failure struct {
	Nonce string
	Err   error
}

// Summary reports the outcome of one drain pass.
type Summary struct {
	// Confirmed holds the nonce accounts whose transactions landed.
	Confirmed []string
	// Retained holds every other record of the snapshot, unmodified and in order.
	Retained []queue.Record
	// Stale lists retained records whose nonce no longer matches the anchor
	// of the staged transaction. They can never land and need an operator.
	Stale    []string
	Failures []Failure
}

// Counts returns the number of confirmed and retained records.
func (s *Summary) Counts() (confirmed, retained int) {
	return len(s.Confirmed), len(s.Retained)
}

// Drainer submits every staged record once per pass.
type Drainer struct {
	queue         queue.Queue
	cluster       svm.Cluster
	reader        *svm.NonceReader
	confirmer     *svm.Confirmer
	skipPreflight bool
	interval      time.Duration
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// NewDrainer creates a Drainer.
func NewDrainer(cfg Config) *Drainer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	logger := cfg.Logger.With().Str("component", "drainer").Logger()
	return &Drainer{
		queue:   cfg.Queue,
		cluster: cfg.Cluster,
		reader:  svm.NewNonceReader(cfg.Cluster),
		confirmer: svm.NewConfirmer(cfg.Cluster, svm.ConfirmerConfig{
			Commitment:   cfg.Commitment,
			Timeout:      cfg.ConfirmTimeout,
			PollInterval: cfg.PollInterval,
		}, cfg.Logger),
		skipPreflight: cfg.SkipPreflight,
		interval:      interval,
		metrics:       cfg.Metrics,
		logger:        logger,
	}
}

// Start runs Run in the background. The returned channel is closed once the
// loop has stopped and no pass is in flight, after which the queue may be
// closed.
func (d *Drainer) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	return done
}

// Run drains immediately and then every interval until ctx is done. It
// returns after the pass in flight, if any, has finished.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.pass(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Drainer) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := d.Drain(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error().Err(err).Msg("drain failed")
		}
		return
	}
	confirmed, retained := summary.Counts()
	if confirmed+retained > 0 {
		d.logger.Info().Int("confirmed", confirmed).Int("retained", retained).Msg("drain pass complete")
	}
}

// Drain submits each record of the current queue in order and waits for it
// to land. Landed records are removed with a single queue write after the
// whole snapshot is processed. Records that did not land are retained
// verbatim. Nothing is written when ctx is cancelled before that point.
func (d *Drainer) Drain(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary, err := d.drain(ctx)
	if err != nil {
		d.metrics.ObserveDrainError()
		return nil, err
	}
	d.metrics.ObserveDrain(len(summary.Confirmed), len(summary.Retained), len(summary.Stale), time.Since(start))
	return summary, nil
}

func (d *Drainer) drain(ctx context.Context) (*Summary, error) {
	snapshot, err := d.queue.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load staging queue")
	}

	summary := &Summary{
		Confirmed: []string{},
		Retained:  []queue.Record{},
		Stale:     []string{},
	}
	settled := make([]queue.Record, 0, len(snapshot))

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := d.logger.With().Str("nonce_account", rec.Nonce).Logger()

		landed, stale, err := d.process(ctx, rec, log)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if landed {
			settled = append(settled, rec)
			summary.Confirmed = append(summary.Confirmed, rec.Nonce)
			continue
		}

		summary.Retained = append(summary.Retained, rec)
		summary.Failures = append(summary.Failures, Failure{Nonce: rec.Nonce, Err: err})
		if stale {
			summary.Stale = append(summary.Stale, rec.Nonce)
			log.Warn().Err(err).Msg("staged transaction can no longer land, nonce has moved")
		} else {
			log.Warn().Err(err).Msg("transaction not confirmed, retained for next drain")
		}
	}

	if err := d.persist(ctx, summary.Retained, settled); err != nil {
		return nil, err
	}
	return summary, nil
}

// process submits one record. It reports whether the transaction landed and,
// when it did not, whether the record is stale.
func (d *Drainer) process(ctx context.Context, rec queue.Record, log zerolog.Logger) (bool, bool, error) {
	tx, raw, sig, err := decodeRecord(rec)
	if err != nil {
		return false, false, err
	}
	log = log.With().Str("signature", sig.String()).Logger()

	if missing := svm.MissingSigners(tx); len(missing) > 0 {
		return false, false, relayerrors.NewChainError(relayerrors.ErrCodeValidation, chainName,
			fmt.Sprintf("transaction is missing %d signatures", len(missing)), svm.ErrMissingSignature).WithSignature(sig)
	}

	_, sendErr := d.cluster.SendRawTransaction(ctx, raw, d.skipPreflight)
	if sendErr == nil {
		log.Debug().Msg("transaction submitted")
		sendErr = d.confirmer.Wait(ctx, sig)
		if sendErr == nil {
			log.Info().Msg("transaction confirmed")
			return true, false, nil
		}
	}
	if ctx.Err() != nil {
		return false, false, ctx.Err()
	}

	// A send error or timeout does not prove the transaction is absent.
	landed, err := d.confirmer.Lookup(ctx, sig)
	if err != nil {
		log.Debug().Err(err).Msg("failed to look up signature")
	}
	if landed {
		log.Info().AnErr("submit_error", sendErr).Msg("transaction already landed")
		return true, false, nil
	}

	return false, d.isStale(ctx, rec, tx, log), sendErr
}

// isStale reports whether the nonce account no longer holds the value the
// transaction was anchored to.
func (d *Drainer) isStale(ctx context.Context, rec queue.Record, tx *solana.Transaction, log zerolog.Logger) bool {
	address, err := solana.PublicKeyFromBase58(rec.Nonce)
	if err != nil {
		return false
	}
	state, err := d.reader.Read(ctx, address)
	if errors.Is(err, svm.ErrAccountNotFound) {
		return true
	}
	if err != nil {
		log.Debug().Err(err).Msg("failed to re-read nonce account")
		return false
	}
	return state.Nonce != tx.Message.RecentBlockhash
}

func (d *Drainer) persist(ctx context.Context, retained, settled []queue.Record) error {
	if updater, ok := d.queue.(queue.Updater); ok {
		remove := queue.RemoveSettled(settled)
		return updater.Update(ctx, func(current []queue.Record) ([]queue.Record, error) {
			next, err := remove(current)
			if err == nil {
				d.metrics.SetQueueDepth(len(next))
			}
			return next, err
		})
	}
	if err := d.queue.Replace(ctx, retained); err != nil {
		return err
	}
	d.metrics.SetQueueDepth(len(retained))
	return nil
}

// decodeRecord parses a payload and checks it is anchored to the record's nonce account.
func decodeRecord(rec queue.Record) (*solana.Transaction, []byte, solana.Signature, error) {
	tx, err := svm.DecodeTransaction(rec.Payload)
	if err != nil {
		return nil, nil, solana.Signature{}, err
	}
	raw, err := svm.DecodeRaw(rec.Payload)
	if err != nil {
		return nil, nil, solana.Signature{}, err
	}
	anchor, ok := svm.DurableAnchor(tx)
	if !ok || anchor.String() != rec.Nonce {
		return nil, nil, solana.Signature{}, relayerrors.NewValidationError(chainName,
			fmt.Sprintf("payload is not anchored to nonce account %s", rec.Nonce))
	}
	sig, ok := svm.FeePayerSignature(tx)
	if !ok {
		return nil, nil, solana.Signature{}, relayerrors.NewChainError(relayerrors.ErrCodeValidation, chainName,
			"payload has no fee payer signature", svm.ErrMissingSignature)
	}
	return tx, raw, sig, nil
}
