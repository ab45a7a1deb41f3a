package svm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	relayerrors "github.com/pushchain/pdurable/relayer/errors"
)

const chainName = "solana"

// JSON-RPC error codes returned by sendTransaction that mean the cluster
// looked at the transaction and refused it.
const (
	rpcCodeSendTxPreflightFailure    = -32002
	rpcCodeSignatureVerifyFailure    = -32003
	rpcCodeTransactionPrecompileFail = -32013
)

// RPCClientConfig configures an RPCClient.
type RPCClientConfig struct {
	URLs                []string
	ExpectedGenesisHash string
	Commitment          rpc.CommitmentType
	RequestTimeout      time.Duration
}

// RPCClient provides SVM-specific RPC operations with round-robin failover.
type RPCClient struct {
	clients        []*rpc.Client
	index          uint64
	mu             sync.RWMutex
	commitment     rpc.CommitmentType
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// permanentError stops failover: the endpoint answered and the answer is final.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// NewRPCClient creates a new SVM RPC client from RPC URLs, skipping endpoints
// that are unhealthy or on a different cluster.
func NewRPCClient(ctx context.Context, cfg RPCClientConfig, logger zerolog.Logger) (*RPCClient, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	log := logger.With().Str("component", "svm_rpc_client").Logger()
	clients := make([]*rpc.Client, 0, len(cfg.URLs))

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, url := range cfg.URLs {
		client := rpc.New(url)

		health, err := client.GetHealth(checkCtx)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to connect to RPC endpoint, skipping")
			continue
		}
		if health != rpc.HealthOk {
			log.Warn().Str("url", url).Str("health", health).Msg("node is not healthy, skipping")
			continue
		}

		if cfg.ExpectedGenesisHash != "" {
			genesisHash, err := client.GetGenesisHash(checkCtx)
			if err != nil {
				log.Warn().Err(err).Str("url", url).Msg("failed to verify genesis hash, skipping")
				continue
			}
			actualHash := genesisHash.String()
			if len(actualHash) > len(cfg.ExpectedGenesisHash) {
				actualHash = actualHash[:len(cfg.ExpectedGenesisHash)]
			}
			if actualHash != cfg.ExpectedGenesisHash {
				log.Warn().
					Str("url", url).
					Str("expected_genesis_hash", cfg.ExpectedGenesisHash).
					Str("actual_genesis_hash", genesisHash.String()).
					Msg("genesis hash mismatch, skipping")
				continue
			}
		}

		clients = append(clients, client)
		log.Info().Str("url", url).Msg("connected to RPC endpoint")
	}

	if len(clients) == 0 {
		return nil, relayerrors.NewNetworkError(chainName, "failed to connect to any valid RPC endpoints", nil)
	}

	return &RPCClient{
		clients:        clients,
		commitment:     cfg.Commitment,
		requestTimeout: cfg.RequestTimeout,
		logger:         log,
	}, nil
}

// Commitment returns the commitment level used for reads and preflight.
func (rc *RPCClient) Commitment() rpc.CommitmentType {
	return rc.commitment
}

// executeWithFailover executes fn against each endpoint in round-robin order
// until one succeeds or returns a permanentError.
func (rc *RPCClient) executeWithFailover(ctx context.Context, operation string, fn func(context.Context, *rpc.Client) error) error {
	rc.mu.RLock()
	clients := rc.clients
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return relayerrors.NewRPCError(chainName, fmt.Sprintf("no RPC clients available for %s", operation), nil)
	}

	var lastErr error
	for attempt := 0; attempt < len(clients); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		index := atomic.AddUint64(&rc.index, 1) - 1
		client := clients[index%uint64(len(clients))]

		callCtx, cancel := context.WithTimeout(ctx, rc.requestTimeout)
		err := fn(callCtx, client)
		cancel()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		rc.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	return relayerrors.NewRPCError(
		chainName,
		fmt.Sprintf("operation %s failed after trying %d endpoints", operation, len(clients)),
		lastErr,
	)
}

// IsHealthy checks if any RPC in the pool answers getHealth with "ok".
func (rc *RPCClient) IsHealthy(ctx context.Context) bool {
	err := rc.executeWithFailover(ctx, "get_health", func(ctx context.Context, client *rpc.Client) error {
		health, err := client.GetHealth(ctx)
		if err != nil {
			return err
		}
		if health != rpc.HealthOk {
			return fmt.Errorf("node health %q", health)
		}
		return nil
	})
	return err == nil
}

// GetAccountInfo fetches an account, returning ErrAccountNotFound when the
// address holds no account.
func (rc *RPCClient) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*rpc.Account, error) {
	var account *rpc.Account
	err := rc.executeWithFailover(ctx, "get_account_info", func(ctx context.Context, client *rpc.Client) error {
		resp, err := client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rc.commitment,
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return &permanentError{err: errors.Wrapf(ErrAccountNotFound, "%s", address)}
			}
			return err
		}
		account = resp.Value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetMinimumBalanceForRentExemption returns the lamports an account of size
// bytes needs to be rent exempt.
func (rc *RPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	var lamports uint64
	err := rc.executeWithFailover(ctx, "get_minimum_balance_for_rent_exemption", func(ctx context.Context, client *rpc.Client) error {
		var err error
		lamports, err = client.GetMinimumBalanceForRentExemption(ctx, size, rc.commitment)
		return err
	})
	return lamports, err
}

// GetLatestBlockhash gets a recent blockhash for transaction building.
func (rc *RPCClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var blockhash solana.Hash
	err := rc.executeWithFailover(ctx, "get_latest_blockhash", func(ctx context.Context, client *rpc.Client) error {
		resp, err := client.GetLatestBlockhash(ctx, rc.commitment)
		if err != nil {
			return err
		}
		blockhash = resp.Value.Blockhash
		return nil
	})
	return blockhash, err
}

// SendRawTransaction submits wire-encoded transaction bytes. A refusal by the
// cluster (preflight or signature failure) is returned as a TRANSACTION error
// without trying other endpoints; transport failures fail over.
func (rc *RPCClient) SendRawTransaction(ctx context.Context, raw []byte, skipPreflight bool) (solana.Signature, error) {
	var sig solana.Signature
	err := rc.executeWithFailover(ctx, "send_transaction", func(ctx context.Context, client *rpc.Client) error {
		var innerErr error
		sig, innerErr = client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
			SkipPreflight:       skipPreflight,
			PreflightCommitment: rc.commitment,
		})
		if innerErr != nil {
			return classifySendError(innerErr)
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// classifySendError separates cluster refusals from transient failures.
func classifySendError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case rpcCodeSendTxPreflightFailure, rpcCodeSignatureVerifyFailure, rpcCodeTransactionPrecompileFail:
			return &permanentError{err: relayerrors.NewTransactionError(chainName, "transaction rejected", err)}
		}
		return relayerrors.NewRPCError(chainName, "send transaction failed", err)
	}
	return relayerrors.NewNetworkError(chainName, "send transaction failed", err)
}

// GetSignatureStatus returns the status of a single signature, or nil if the
// cluster has no record of it.
func (rc *RPCClient) GetSignatureStatus(ctx context.Context, sig solana.Signature, searchHistory bool) (*rpc.SignatureStatusesResult, error) {
	var status *rpc.SignatureStatusesResult
	err := rc.executeWithFailover(ctx, "get_signature_statuses", func(ctx context.Context, client *rpc.Client) error {
		resp, err := client.GetSignatureStatuses(ctx, searchHistory, sig)
		if err != nil {
			return err
		}
		status = nil
		if resp != nil && len(resp.Value) > 0 {
			status = resp.Value[0]
		}
		return nil
	})
	return status, err
}

// Close drops all RPC connections.
func (rc *RPCClient) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	// Solana RPC clients don't have explicit Close, but we clear the slice
	rc.clients = nil
}
