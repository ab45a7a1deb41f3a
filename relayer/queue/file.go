package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DocumentVersion is the current on-disk format of the file backend.
	DocumentVersion = 1

	queueDirPermissions  = 0o750
	queueFilePermissions = 0o600
	lockRetryDelay       = 50 * time.Millisecond
)

// document is the persisted form of the file backend.
type document struct {
	Version int      `json:"version"`
	Records []Record `json:"records"`
}

// legacyRecord is an element of the bare-array format, where the payload
// was stored under "buffer".
type legacyRecord struct {
	Nonce   string `json:"nonce"`
	Buffer  string `json:"buffer,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// FileQueue stores the whole queue as one JSON document. Each operation reads
// the whole document and mutations rewrite it through a temp file and rename.
// A mutex orders callers in this process and a lock file orders processes.
type FileQueue struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	logger zerolog.Logger
}

var (
	_ Queue   = (*FileQueue)(nil)
	_ Updater = (*FileQueue)(nil)
)

// NewFileQueue opens the queue document at path, creating its directory.
// The document itself is created on the first write.
func NewFileQueue(path string, logger zerolog.Logger) (*FileQueue, error) {
	if path == "" {
		return nil, errors.New("queue path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), queueDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to create queue directory for %s", path)
	}
	return &FileQueue{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With().Str("component", "file_queue").Str("path", path).Logger(),
	}, nil
}

// Path returns the document location.
func (q *FileQueue) Path() string {
	return q.path
}

// Stage implements Queue.
func (q *FileQueue) Stage(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return q.withLock(ctx, func() error {
		records, err := q.read()
		if err != nil {
			return err
		}
		for _, existing := range records {
			if existing.Nonce == rec.Nonce {
				return errors.Wrapf(ErrAlreadyReserved, "nonce %s", rec.Nonce)
			}
		}
		return q.write(append(records, rec))
	})
}

// Load implements Queue.
func (q *FileQueue) Load(ctx context.Context) ([]Record, error) {
	var records []Record
	err := q.withLock(ctx, func() error {
		var err error
		records, err = q.read()
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Replace implements Queue.
func (q *FileQueue) Replace(ctx context.Context, remaining []Record) error {
	if err := checkRecords(remaining); err != nil {
		return err
	}
	return q.withLock(ctx, func() error {
		return q.write(remaining)
	})
}

// Update implements Updater.
func (q *FileQueue) Update(ctx context.Context, fn UpdateFunc) error {
	return q.withLock(ctx, func() error {
		records, err := q.read()
		if err != nil {
			return err
		}
		next, err := fn(records)
		if err != nil {
			return err
		}
		if err := checkRecords(next); err != nil {
			return err
		}
		return q.write(next)
	})
}

// Close releases the lock file handle.
func (q *FileQueue) Close() error {
	return q.lock.Close()
}

func (q *FileQueue) withLock(ctx context.Context, fn func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	locked, err := q.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.Wrapf(err, "failed to lock %s", q.lock.Path())
	}
	if !locked {
		return errors.Errorf("failed to lock %s", q.lock.Path())
	}
	defer func() {
		if err := q.lock.Unlock(); err != nil {
			q.logger.Error().Err(err).Msg("failed to release queue lock")
		}
	}()

	return fn()
}

func (q *FileQueue) read() ([]Record, error) {
	data, err := os.ReadFile(filepath.Clean(q.path))
	if os.IsNotExist(err) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", q.path)
	}

	records, legacy, err := decodeDocument(data)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptQueue, "%s: %v", q.path, err)
	}
	if legacy {
		q.logger.Warn().Int("records", len(records)).Msg("read legacy queue format, it will be rewritten on the next write")
	}
	return records, nil
}

// decodeDocument parses either the versioned document or the legacy bare array.
func decodeDocument(data []byte) ([]Record, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Record{}, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var (
		records []Record
		legacy  bool
	)
	if trimmed[0] == '[' {
		var old []legacyRecord
		if err := dec.Decode(&old); err != nil {
			return nil, false, err
		}
		records = make([]Record, 0, len(old))
		for _, r := range old {
			payload := r.Payload
			if payload == "" {
				payload = r.Buffer
			} else if r.Buffer != "" && r.Buffer != r.Payload {
				return nil, false, errors.Errorf("nonce %s has both buffer and payload", r.Nonce)
			}
			records = append(records, Record{Nonce: r.Nonce, Payload: payload})
		}
		legacy = true
	} else {
		var doc document
		if err := dec.Decode(&doc); err != nil {
			return nil, false, err
		}
		if doc.Version != DocumentVersion {
			return nil, false, errors.Errorf("unsupported version %d", doc.Version)
		}
		records = doc.Records
		if records == nil {
			records = []Record{}
		}
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, false, errors.New("trailing data after document")
	}
	if err := checkRecords(records); err != nil {
		return nil, false, err
	}
	return records, legacy, nil
}

func (q *FileQueue) write(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(document{Version: DocumentVersion, Records: records}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal queue")
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(q.path), "."+filepath.Base(q.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp queue file")
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write temp queue file")
	}
	if err := tmp.Chmod(queueFilePermissions); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to set queue file permissions")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to sync temp queue file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp queue file")
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", q.path)
	}
	return nil
}
