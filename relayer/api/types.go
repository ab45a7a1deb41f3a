package api

import "time"

// QueryResponse represents the standard query response format
type QueryResponse struct {
	Data      interface{} `json:"data"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// QueueEntry describes one staged transaction.
type QueueEntry struct {
	Nonce string `json:"nonce"`
	// Signature is the fee payer signature, which identifies the transaction once sent.
	Signature string `json:"signature,omitempty"`
	// Anchor is the nonce value the transaction was built against.
	Anchor            string `json:"anchor,omitempty"`
	MissingSignatures int    `json:"missing_signatures"`
	Size              int    `json:"size"`
	Error             string `json:"error,omitempty"`
}
