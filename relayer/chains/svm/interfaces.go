package svm

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// AccountFetcher returns raw account state. Implementations return
// ErrAccountNotFound when the address holds no account.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, address solana.PublicKey) (*rpc.Account, error)
}

// Network is the subset of the cluster RPC used to submit and track transactions.
type Network interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendRawTransaction(ctx context.Context, raw []byte, skipPreflight bool) (solana.Signature, error)
	// GetSignatureStatus returns nil, nil when the cluster does not know the signature.
	GetSignatureStatus(ctx context.Context, sig solana.Signature, searchHistory bool) (*rpc.SignatureStatusesResult, error)
}

// Cluster is everything the relayer needs from an RPC endpoint.
type Cluster interface {
	AccountFetcher
	Network
}

var _ Cluster = (*RPCClient)(nil)
