// Package db opens the SQLite database behind the sqlite staging queue.
package db

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pushchain/pdurable/relayer/store"
)

const (
	inMemoryDSN = ":memory:"

	// WAL lets readers such as `queue list` run while a drain holds the
	// write lock; busy_timeout makes a second writer wait instead of failing.
	fileDSNOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&mode=rwc"

	dbDirPermissions = 0o750
)

// DB owns the gorm handle of one queue database.
type DB struct {
	client *gorm.DB
	path   string
}

// Open opens or creates the database file at path and migrates the schema.
func Open(path string, logger zerolog.Logger) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), dbDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to create database directory for %s", path)
	}
	return open(path+fileDSNOptions, path, logger)
}

// OpenInMemory opens a migrated database that lives as long as the handle.
func OpenInMemory(logger zerolog.Logger) (*DB, error) {
	return open(inMemoryDSN, inMemoryDSN, logger)
}

func open(dsn, path string, logger zerolog.Logger) (*DB, error) {
	logger = logger.With().Str("component", "db").Str("path", path).Logger()

	client, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newGormLogger(logger),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database %s", path)
	}

	sqlDB, err := client.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	// SQLite serializes writers, and an in-memory database is private to
	// the connection that created it.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	d := &DB{client: client, path: path}
	if err := d.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Debug().Msg("queue database ready")
	return d, nil
}

// migrate creates the tables and the single queue state row.
func (d *DB) migrate() error {
	if err := d.client.AutoMigrate(&store.StagedTransaction{}, &store.QueueState{}); err != nil {
		return errors.Wrap(err, "failed to migrate queue schema")
	}
	state := store.QueueState{ID: store.QueueStateID}
	if err := d.client.FirstOrCreate(&state, store.QueueState{ID: store.QueueStateID}).Error; err != nil {
		return errors.Wrap(err, "failed to initialize queue state")
	}
	return nil
}

// Client returns the gorm handle.
func (d *DB) Client() *gorm.DB {
	return d.client
}

// Path returns the database file, or ":memory:".
func (d *DB) Path() string {
	return d.path
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve native sql.DB")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close database %s", d.path)
	}
	return nil
}
