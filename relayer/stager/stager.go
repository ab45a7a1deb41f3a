// Package stager signs transactions against a durable nonce and reserves the
// nonce in the staging queue.
package stager

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	"github.com/pushchain/pdurable/relayer/metrics"
	"github.com/pushchain/pdurable/relayer/queue"
)

// Request is one transaction to stage.
type Request struct {
	// NonceAccount anchors the transaction and keys the reservation.
	NonceAccount solana.PublicKey
	Instructions []solana.Instruction
	FeePayer     solana.PrivateKey
	// Signers are co-signers available now, such as freshly generated
	// account keys. Missing co-signers leave empty signature slots.
	Signers []solana.PrivateKey
}

// Config configures a Stager.
type Config struct {
	Budget  svm.Budget
	Metrics *metrics.Metrics
}

// Stager runs read nonce, build, sign, encode and stage as one operation.
// Operations on the same nonce account are serialized; different nonce
// accounts proceed in parallel.
type Stager struct {
	reader  *svm.NonceReader
	builder *svm.TxBuilder
	queue   queue.Queue
	locks   *queue.KeyedMutex
	budget  svm.Budget
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a Stager.
func New(accounts svm.AccountFetcher, q queue.Queue, cfg Config, logger zerolog.Logger) *Stager {
	return &Stager{
		reader:  svm.NewNonceReader(accounts),
		builder: svm.NewTxBuilder(),
		queue:   q,
		locks:   queue.NewKeyedMutex(),
		budget:  cfg.Budget,
		metrics: cfg.Metrics,
		logger:  logger.With().Str("component", "stager").Logger(),
	}
}

// Stage builds, signs and reserves req. It returns queue.ErrAlreadyReserved
// without touching the network when the nonce already has a record.
func (s *Stager) Stage(ctx context.Context, req Request) (*queue.Record, error) {
	rec, err := s.stage(ctx, req)
	switch {
	case err == nil:
		s.metrics.ObserveStage(metrics.StageOK)
	case errors.Is(err, queue.ErrAlreadyReserved):
		s.metrics.ObserveStage(metrics.StageReserved)
	default:
		s.metrics.ObserveStage(metrics.StageError)
	}
	return rec, err
}

func (s *Stager) stage(ctx context.Context, req Request) (*queue.Record, error) {
	if req.NonceAccount.IsZero() {
		return nil, errors.New("nonce account is required")
	}
	if len(req.Instructions) == 0 {
		return nil, svm.ErrEmptyPayload
	}
	if err := svm.CheckKey(req.FeePayer); err != nil {
		return nil, errors.Wrap(err, "fee payer")
	}
	for i, k := range req.Signers {
		if err := svm.CheckKey(k); err != nil {
			return nil, errors.Wrapf(err, "signer %d", i)
		}
	}
	nonceKey := req.NonceAccount.String()
	log := s.logger.With().Str("nonce_account", nonceKey).Logger()

	unlock := s.locks.Lock(nonceKey)
	defer unlock()

	existing, err := queue.Find(ctx, s.queue, nonceKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Wrapf(queue.ErrAlreadyReserved, "nonce %s", nonceKey)
	}

	state, err := s.reader.Read(ctx, req.NonceAccount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read nonce")
	}

	tx, err := s.builder.BuildDurable(req.NonceAccount, state, req.FeePayer.PublicKey(), s.budget, req.Instructions)
	if err != nil {
		return nil, err
	}
	if err := svm.Sign(tx, req.FeePayer, req.Signers...); err != nil {
		return nil, err
	}
	if missing := svm.MissingSigners(tx); len(missing) > 0 {
		log.Info().Int("missing_signatures", len(missing)).Msg("staging partially signed transaction")
	}

	payload, err := svm.EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	rec := queue.Record{Nonce: nonceKey, Payload: payload}
	if err := s.queue.Stage(ctx, rec); err != nil {
		return nil, err
	}

	log.Info().
		Str("nonce", state.Nonce.String()).
		Str("signature", tx.Signatures[0].String()).
		Msg("transaction staged")
	s.refreshDepth(ctx)
	return &rec, nil
}

func (s *Stager) refreshDepth(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	records, err := s.queue.Load(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("failed to read queue depth")
		return
	}
	s.metrics.SetQueueDepth(len(records))
}
