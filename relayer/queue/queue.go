// Package queue persists signed durable-nonce transactions until they are
// broadcast. Every backend holds at most one record per nonce account.
package queue

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyReserved is returned by Stage when the nonce already has a record.
	ErrAlreadyReserved = errors.New("nonce already reserved")

	// ErrCorruptQueue is returned when the persisted queue cannot be read back.
	// The queue is left untouched; fixing it needs an operator.
	ErrCorruptQueue = errors.New("corrupt staging queue")

	// ErrInvalidRecord is returned when a record is missing its nonce or payload.
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is one staged transaction: the nonce account it is anchored to and
// the base58 wire bytes of the signed transaction.
type Record struct {
	Nonce   string `json:"nonce"`
	Payload string `json:"payload"`
}

// Validate checks that both fields are set.
func (r Record) Validate() error {
	if r.Nonce == "" {
		return errors.Wrap(ErrInvalidRecord, "nonce is empty")
	}
	if r.Payload == "" {
		return errors.Wrapf(ErrInvalidRecord, "payload for %s is empty", r.Nonce)
	}
	return nil
}

// Queue is an ordered reservation store keyed by nonce account.
type Queue interface {
	// Stage appends rec. It returns ErrAlreadyReserved without writing when
	// a record for rec.Nonce exists.
	Stage(ctx context.Context, rec Record) error

	// Load returns the queue in order; empty when nothing was persisted.
	Load(ctx context.Context) ([]Record, error)

	// Replace overwrites the queue with exactly remaining, atomically.
	Replace(ctx context.Context, remaining []Record) error

	Close() error
}

// UpdateFunc maps the current queue to its next state.
type UpdateFunc func(current []Record) ([]Record, error)

// Updater is implemented by queues that can run a read-modify-write cycle
// under one lock or transaction.
type Updater interface {
	Update(ctx context.Context, fn UpdateFunc) error
}

// RemoveSettled returns an UpdateFunc that drops every record whose nonce and
// payload match an entry of settled. Records staged or restaged after settled
// was computed are kept.
func RemoveSettled(settled []Record) UpdateFunc {
	drop := make(map[string]string, len(settled))
	for _, r := range settled {
		drop[r.Nonce] = r.Payload
	}
	return func(current []Record) ([]Record, error) {
		out := make([]Record, 0, len(current))
		for _, r := range current {
			if payload, ok := drop[r.Nonce]; ok && payload == r.Payload {
				continue
			}
			out = append(out, r)
		}
		return out, nil
	}
}

// Find returns the record for nonce, if any.
func Find(ctx context.Context, q Queue, nonce string) (*Record, error) {
	records, err := q.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Nonce == nonce {
			rec := records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// Without returns records minus the ones whose nonce is in drop, preserving order.
func Without(records []Record, drop ...string) []Record {
	skip := make(map[string]struct{}, len(drop))
	for _, n := range drop {
		skip[n] = struct{}{}
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := skip[r.Nonce]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// checkRecords validates every record and the one-per-nonce rule.
func checkRecords(records []Record) error {
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
		if _, dup := seen[r.Nonce]; dup {
			return errors.Wrapf(ErrAlreadyReserved, "record %d: duplicate nonce %s", i, r.Nonce)
		}
		seen[r.Nonce] = struct{}{}
	}
	return nil
}
