package svm

import (
	"context"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	relayerrors "github.com/pushchain/pdurable/relayer/errors"
)

// ExecutorConfig configures the immediate submission path.
type ExecutorConfig struct {
	Budget           Budget
	SkipPreflight    bool
	MaxSubmitRetries int
	// RetryInitialDelay and RetryMaxDelay bound the backoff between submit attempts.
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

// Executor builds, signs, submits and confirms transactions anchored to a
// fresh blockhash. It does not touch the staging queue.
type Executor struct {
	network   Network
	builder   *TxBuilder
	confirmer *Confirmer
	cfg       ExecutorConfig
	logger    zerolog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(network Network, confirmer *Confirmer, cfg ExecutorConfig, logger zerolog.Logger) *Executor {
	if cfg.MaxSubmitRetries <= 0 {
		cfg.MaxSubmitRetries = 5
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	return &Executor{
		network:   network,
		builder:   NewTxBuilder(),
		confirmer: confirmer,
		cfg:       cfg,
		logger:    logger.With().Str("component", "svm_executor").Logger(),
	}
}

// ExecuteImmediate sends ixs signed by feePayer and every auxiliary signer
// and waits for confirmation. The transaction is signed once and the same
// bytes are resent on transient submit errors, up to MaxSubmitRetries
// attempts. Before each resend the previous signature is looked up, so a
// send that failed in transport but reached the cluster is not duplicated.
// The transaction is rebuilt on a fresh blockhash only when the cluster
// reports its blockhash as unknown. A rejection by the cluster or an
// on-chain execution error is returned immediately.
func (e *Executor) ExecuteImmediate(
	ctx context.Context,
	ixs []solana.Instruction,
	feePayer solana.PrivateKey,
	auxiliary ...solana.PrivateKey,
) (solana.Signature, error) {
	if len(ixs) == 0 {
		return solana.Signature{}, ErrEmptyPayload
	}
	if err := CheckKey(feePayer); err != nil {
		return solana.Signature{}, relayerrors.NewChainError(relayerrors.ErrCodeValidation, chainName, "invalid fee payer", err)
	}

	var (
		raw    []byte
		signed solana.Signature
		sig    solana.Signature
	)

	build := func() error {
		blockhash, err := e.network.GetLatestBlockhash(ctx)
		if err != nil {
			return relayerrors.WrapChainError(err, relayerrors.ErrCodeRPC, chainName, "failed to get latest blockhash")
		}

		tx, err := e.builder.BuildImmediate(blockhash, feePayer.PublicKey(), e.cfg.Budget, ixs)
		if err != nil {
			return relayerrors.NewChainError(relayerrors.ErrCodeValidation, chainName, "failed to build transaction", err)
		}
		if err := SignComplete(tx, feePayer, auxiliary...); err != nil {
			return relayerrors.NewChainError(relayerrors.ErrCodeValidation, chainName, "failed to sign transaction", err)
		}

		raw, err = tx.MarshalBinary()
		if err != nil {
			raw = nil
			return relayerrors.NewChainError(relayerrors.ErrCodeInternal, chainName, "failed to serialize transaction", err)
		}
		signed = tx.Signatures[0]
		return nil
	}

	submit := func() error {
		if raw == nil {
			if err := build(); err != nil {
				return err
			}
		} else {
			status, err := e.network.GetSignatureStatus(ctx, signed, true)
			if err == nil && status != nil {
				e.logger.Info().Str("signature", signed.String()).Msg("previous submit reached the cluster")
				sig = signed
				return nil
			}
		}

		sent, err := e.network.SendRawTransaction(ctx, raw, e.cfg.SkipPreflight)
		if err != nil {
			if isBlockhashNotFound(err) {
				raw = nil
				return relayerrors.NewRPCError(chainName, "blockhash expired before submit", err).WithSignature(signed)
			}
			return relayerrors.WrapChainError(err, relayerrors.ErrCodeNetwork, chainName, "failed to send transaction")
		}
		sig = sent
		return nil
	}

	retryCfg := relayerrors.DefaultRetryConfig()
	retryCfg.MaxAttempts = e.cfg.MaxSubmitRetries
	retryCfg.InitialDelay = e.cfg.RetryInitialDelay
	retryCfg.MaxDelay = e.cfg.RetryMaxDelay
	retryCfg.OnRetry = func(attempt int, err error) {
		e.logger.Warn().Err(err).Int("attempt", attempt).Str("signature", signed.String()).Msg("submit failed, retrying")
	}

	if err := relayerrors.RetryWithConfig(ctx, submit, retryCfg); err != nil {
		return solana.Signature{}, err
	}

	e.logger.Info().Str("signature", sig.String()).Msg("transaction submitted")

	if err := e.confirmer.Wait(ctx, sig); err != nil {
		return sig, err
	}

	e.logger.Info().Str("signature", sig.String()).Msg("transaction confirmed")
	return sig, nil
}

// isBlockhashNotFound reports whether the cluster refused a transaction
// because its recent blockhash expired or is not yet known to the node.
func isBlockhashNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "blockhash not found")
}
