package svm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	relayerrors "github.com/pushchain/pdurable/relayer/errors"
)

var (
	// ErrConfirmTimeout is returned when a signature did not reach the target
	// commitment before the deadline. It says nothing about whether the
	// transaction will land.
	ErrConfirmTimeout = errors.New("confirmation timed out")

	// ErrTransactionFailed is returned when the cluster reports an execution error.
	ErrTransactionFailed = errors.New("transaction failed on chain")
)

// ParseCommitment maps a config string onto an rpc commitment level.
func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch strings.ToLower(s) {
	case "", "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("unknown commitment %q", s)
	}
}

func confirmationRank(status rpc.ConfirmationStatusType) int {
	switch status {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	default:
		return 0
	}
}

func commitmentRank(c rpc.CommitmentType) int {
	switch c {
	case rpc.CommitmentProcessed:
		return 1
	case rpc.CommitmentFinalized:
		return 3
	default:
		return 2
	}
}

// Reached reports whether status satisfies the commitment level.
func Reached(status *rpc.SignatureStatusesResult, commitment rpc.CommitmentType) bool {
	if status == nil {
		return false
	}
	return confirmationRank(status.ConfirmationStatus) >= commitmentRank(commitment)
}

// ConfirmerConfig configures a Confirmer.
type ConfirmerConfig struct {
	Commitment   rpc.CommitmentType
	Timeout      time.Duration
	PollInterval time.Duration
}

// Confirmer polls signature statuses until a transaction lands, fails or the
// deadline passes.
type Confirmer struct {
	network      Network
	commitment   rpc.CommitmentType
	timeout      time.Duration
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewConfirmer creates a Confirmer. Zero durations fall back to 60s and 500ms.
func NewConfirmer(network Network, cfg ConfirmerConfig, logger zerolog.Logger) *Confirmer {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Confirmer{
		network:      network,
		commitment:   cfg.Commitment,
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		logger:       logger.With().Str("component", "svm_confirmer").Logger(),
	}
}

// Wait blocks until sig reaches the configured commitment. It returns a
// TIMEOUT ChainError wrapping ErrConfirmTimeout when the deadline passes, a
// TRANSACTION ChainError wrapping ErrTransactionFailed when the cluster
// reports an execution error, and ctx.Err() when ctx is cancelled.
func (c *Confirmer) Wait(ctx context.Context, sig solana.Signature) error {
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.network.GetSignatureStatus(ctx, sig, false)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug().Err(err).Str("signature", sig.String()).Msg("error checking transaction status")
		case status != nil && status.Err != nil:
			return relayerrors.NewTransactionError(chainName,
				fmt.Sprintf("transaction failed: %v", status.Err), ErrTransactionFailed).WithSignature(sig)
		case Reached(status, c.commitment):
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return relayerrors.NewChainError(relayerrors.ErrCodeTimeout, chainName,
				fmt.Sprintf("transaction not %s within %s", c.commitment, c.timeout), ErrConfirmTimeout).WithSignature(sig)
		case <-ticker.C:
		}
	}
}

// Lookup checks once whether sig landed, searching the full ledger history.
// It returns true only when the transaction executed without error.
func (c *Confirmer) Lookup(ctx context.Context, sig solana.Signature) (bool, error) {
	status, err := c.network.GetSignatureStatus(ctx, sig, true)
	if err != nil {
		return false, err
	}
	if status == nil || status.Err != nil {
		return false, nil
	}
	return Reached(status, c.commitment), nil
}
