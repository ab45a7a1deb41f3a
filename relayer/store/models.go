// Package store contains GORM-backed SQLite models used by the sqlite staging
// queue backend.
//
// Database Structure (database file: staged_txs.db):
//
//	staged_transactions   one row per reserved nonce account
//	queue_states          single row tracking the queue revision
package store

import "time"

// StagedTransaction is a signed, nonce-anchored transaction waiting to be
// broadcast. Rows are hard-deleted so the unique nonce index always reflects
// the live reservations.
type StagedTransaction struct {
	ID        uint      `gorm:"primaryKey"`
	Nonce     string    `gorm:"uniqueIndex;not null"` // Nonce account address (base58)
	Payload   string    `gorm:"type:text;not null"`   // base58 wire transaction
	Position  int64     `gorm:"index;not null"`       // Queue order, ascending
	CreatedAt time.Time // When the reservation was first written
}

// QueueStateID is the primary key of the only QueueState row.
const QueueStateID = 1

// QueueState tracks the revision of the queue. One record per database.
type QueueState struct {
	ID        uint   `gorm:"primaryKey"`
	Revision  uint64 // Incremented on every committed mutation
	UpdatedAt time.Time
}
