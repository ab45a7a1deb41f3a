package errors

import (
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// JSON-RPC error codes a Solana node returns while it cannot serve the
// request yet.
const (
	rpcCodeBlockNotAvailable        = -32004
	rpcCodeNodeUnhealthy            = -32005
	rpcCodeMinContextSlotNotReached = -32016
)

// WrapChainError returns err as a ChainError. An existing ChainError in the
// chain is returned as is so the innermost classification wins; only its
// chain name is filled in when missing.
func WrapChainError(err error, code ErrorCode, chain, message string) *ChainError {
	if err == nil {
		return nil
	}

	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		if chain != "" && chainErr.Chain == "" {
			chainErr.Chain = chain
		}
		return chainErr
	}

	return NewChainError(code, chain, message, err)
}

// IsChainError checks if an error is a ChainError with specific code
func IsChainError(err error, code ErrorCode) bool {
	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Code == code
	}
	return false
}

// retryablePatterns are substrings of transport failures seen from Solana RPC
// endpoints that are worth another attempt.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"too many requests",
	"rate limit",
	"429",
	"503",
	"eof",
	"node is behind",
}

// IsRetryable reports whether err is transient. A ChainError decides by its
// code; otherwise node-health JSON-RPC codes and known transport messages
// count as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.IsRetryable()
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case rpcCodeBlockNotAvailable, rpcCodeNodeUnhealthy, rpcCodeMinContextSlotNotReached:
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
