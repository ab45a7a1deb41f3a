package queue

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pushchain/pdurable/relayer/db"
	"github.com/pushchain/pdurable/relayer/store"
)

// SQLQueue stores one row per reservation in SQLite. A unique index on the
// nonce column backs the one-record-per-nonce rule and every mutation runs
// in a transaction.
type SQLQueue struct {
	database *db.DB
	db       *gorm.DB
	logger   zerolog.Logger
}

var (
	_ Queue   = (*SQLQueue)(nil)
	_ Updater = (*SQLQueue)(nil)
)

// OpenSQLQueue opens (or creates) the SQLite queue database at path.
func OpenSQLQueue(path string, logger zerolog.Logger) (*SQLQueue, error) {
	database, err := db.Open(path, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open queue database")
	}
	return NewSQLQueue(database, logger), nil
}

// NewSQLQueue wraps an already migrated database.
func NewSQLQueue(database *db.DB, logger zerolog.Logger) *SQLQueue {
	return &SQLQueue{
		database: database,
		db:       database.Client(),
		logger:   logger.With().Str("component", "sql_queue").Logger(),
	}
}

// Stage implements Queue.
func (q *SQLQueue) Stage(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&store.StagedTransaction{}).Where("nonce = ?", rec.Nonce).Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to check reservation")
		}
		if count > 0 {
			return errors.Wrapf(ErrAlreadyReserved, "nonce %s", rec.Nonce)
		}

		var last store.StagedTransaction
		position := int64(1)
		err := tx.Order("position DESC").Limit(1).Find(&last).Error
		if err != nil {
			return errors.Wrap(err, "failed to read queue tail")
		}
		if last.ID != 0 {
			position = last.Position + 1
		}

		row := store.StagedTransaction{Nonce: rec.Nonce, Payload: rec.Payload, Position: position}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return errors.Wrapf(ErrAlreadyReserved, "nonce %s", rec.Nonce)
			}
			return errors.Wrapf(err, "failed to stage nonce %s", rec.Nonce)
		}
		return bumpRevision(tx)
	})
	return err
}

// Load implements Queue.
func (q *SQLQueue) Load(ctx context.Context) ([]Record, error) {
	var rows []store.StagedTransaction
	if err := q.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load staged transactions")
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{Nonce: row.Nonce, Payload: row.Payload})
	}
	if err := checkRecords(records); err != nil {
		return nil, errors.Wrapf(ErrCorruptQueue, "%v", err)
	}
	return records, nil
}

// Replace implements Queue. Surviving records keep their original CreatedAt.
func (q *SQLQueue) Replace(ctx context.Context, remaining []Record) error {
	if err := checkRecords(remaining); err != nil {
		return err
	}
	return q.Update(ctx, func([]Record) ([]Record, error) {
		return remaining, nil
	})
}

// Update implements Updater. fn runs inside the transaction.
func (q *SQLQueue) Update(ctx context.Context, fn UpdateFunc) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []store.StagedTransaction
		if err := tx.Order("position ASC").Find(&existing).Error; err != nil {
			return errors.Wrap(err, "failed to read staged transactions")
		}
		current := make([]Record, 0, len(existing))
		byNonce := make(map[string]store.StagedTransaction, len(existing))
		for _, row := range existing {
			current = append(current, Record{Nonce: row.Nonce, Payload: row.Payload})
			byNonce[row.Nonce] = row
		}
		if err := checkRecords(current); err != nil {
			return errors.Wrapf(ErrCorruptQueue, "%v", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if err := checkRecords(next); err != nil {
			return err
		}

		if err := tx.Where("1 = 1").Delete(&store.StagedTransaction{}).Error; err != nil {
			return errors.Wrap(err, "failed to clear staged transactions")
		}

		if len(next) > 0 {
			rows := make([]store.StagedTransaction, 0, len(next))
			for i, rec := range next {
				row := store.StagedTransaction{Nonce: rec.Nonce, Payload: rec.Payload, Position: int64(i + 1)}
				if old, ok := byNonce[rec.Nonce]; ok && old.Payload == rec.Payload {
					row.CreatedAt = old.CreatedAt
				}
				rows = append(rows, row)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return errors.Wrap(err, "failed to write staged transactions")
			}
		}
		return bumpRevision(tx)
	})
}

// Revision returns the number of committed mutations.
func (q *SQLQueue) Revision(ctx context.Context) (uint64, error) {
	var state store.QueueState
	err := q.db.WithContext(ctx).Where("id = ?", store.QueueStateID).Limit(1).Find(&state).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to read queue revision")
	}
	return state.Revision, nil
}

// Close closes the database.
func (q *SQLQueue) Close() error {
	return q.database.Close()
}

func bumpRevision(tx *gorm.DB) error {
	state := store.QueueState{ID: store.QueueStateID}
	if err := tx.FirstOrCreate(&state, store.QueueState{ID: store.QueueStateID}).Error; err != nil {
		return errors.Wrap(err, "failed to load queue revision")
	}
	state.Revision++
	if err := tx.Save(&state).Error; err != nil {
		return errors.Wrap(err, "failed to save queue revision")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
