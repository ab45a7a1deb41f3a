// Package errors classifies failures talking to a Solana cluster so callers
// can decide whether another attempt can help.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode is the category of a ChainError.
type ErrorCode string

const (
	// ErrCodeValidation marks input the cluster was never asked about: bad
	// keys, unsigned or mis-anchored payloads.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNetwork marks transport failures reaching an endpoint.
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeRPC marks errors returned by a Solana RPC endpoint.
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeTimeout marks a transaction that did not reach the requested
	// commitment in time. It may still land.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeTransaction marks a transaction rejected in preflight or failed on chain.
	ErrCodeTransaction ErrorCode = "TRANSACTION"

	// ErrCodeInternal marks local failures such as serialization.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// ChainError is an error raised while talking to a chain, tagged with a code
// that drives retry decisions.
type ChainError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Chain   string    `json:"chain,omitempty"`
	// Signature is the fee payer signature of the transaction involved, if any.
	Signature string `json:"signature,omitempty"`
	// Attempts is set when the error ended a retry loop.
	Attempts int   `json:"attempts,omitempty"`
	Cause    error `json:"-"`
}

// NewChainError creates a new ChainError
func NewChainError(code ErrorCode, chain, message string, cause error) *ChainError {
	return &ChainError{
		Code:    code,
		Message: message,
		Chain:   chain,
		Cause:   cause,
	}
}

// Error renders "[chain:CODE] message (signature, attempts): cause".
func (e *ChainError) Error() string {
	var b strings.Builder
	if e.Chain != "" {
		fmt.Fprintf(&b, "[%s:%s] %s", e.Chain, e.Code, e.Message)
	} else {
		fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	}

	var details []string
	if e.Signature != "" {
		details = append(details, "signature "+e.Signature)
	}
	if e.Attempts > 0 {
		details = append(details, fmt.Sprintf("after %d attempts", e.Attempts))
	}
	if len(details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *ChainError) Unwrap() error {
	return e.Cause
}

// WithSignature records the transaction the error is about.
func (e *ChainError) WithSignature(sig fmt.Stringer) *ChainError {
	e.Signature = sig.String()
	return e
}

// IsRetryable reports whether the same request may succeed later.
func (e *ChainError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// NewValidationError creates a validation error
func NewValidationError(chain, message string) *ChainError {
	return NewChainError(ErrCodeValidation, chain, message, nil)
}

// NewNetworkError creates a network error
func NewNetworkError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeNetwork, chain, message, cause)
}

// NewRPCError creates an RPC error
func NewRPCError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeRPC, chain, message, cause)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(chain, message string) *ChainError {
	return NewChainError(ErrCodeTimeout, chain, message, nil)
}

// NewTransactionError creates an error for a transaction the chain refused
func NewTransactionError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeTransaction, chain, message, cause)
}
