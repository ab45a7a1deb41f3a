package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileQueueAt(t *testing.T, path string) *FileQueue {
	t.Helper()
	q, err := NewFileQueue(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestFileQueue_DocumentFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "staged_txs.json")
	q := newFileQueueAt(t, path)

	require.NoError(t, q.Stage(ctx, rec("N1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(DocumentVersion), doc["version"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"nonce": "N1", "payload": "payload-N1"},
	}, doc["records"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(queueFilePermissions), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp file left behind")
	}
}

func TestFileQueue_Corrupt(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{"bad json", `{"version":1,"records":[`},
		{"unknown field", `{"version":1,"records":[],"extra":true}`},
		{"unknown record field", `{"version":1,"records":[{"nonce":"N1","payload":"p","sig":"x"}]}`},
		{"unsupported version", `{"version":2,"records":[]}`},
		{"duplicate nonce", `{"version":1,"records":[{"nonce":"N1","payload":"a"},{"nonce":"N1","payload":"b"}]}`},
		{"empty payload", `{"version":1,"records":[{"nonce":"N1","payload":""}]}`},
		{"trailing data", `{"version":1,"records":[]} {}`},
		{"not a document", `"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "staged_txs.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			q := newFileQueueAt(t, path)

			_, err := q.Load(ctx)
			assert.ErrorIs(t, err, ErrCorruptQueue)

			// a corrupt queue is never rewritten
			assert.ErrorIs(t, q.Stage(ctx, rec("N2")), ErrCorruptQueue)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}

func TestFileQueue_LegacyFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "staged_txs.json")
	legacy := `[{"nonce":"N1","buffer":"abc"},{"nonce":"N2","buffer":"def"}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))
	q := newFileQueueAt(t, path)

	records, err := q.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{Nonce: "N1", Payload: "abc"}, {Nonce: "N2", Payload: "def"}}, records)

	assert.ErrorIs(t, q.Stage(ctx, Record{Nonce: "N1", Payload: "zzz"}), ErrAlreadyReserved)

	require.NoError(t, q.Stage(ctx, rec("N3")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
	assert.NotContains(t, string(data), "buffer")
}

func TestFileQueue_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staged_txs.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	records, err := newFileQueueAt(t, path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

// Two handles on one path behave like two processes sharing the document.
func TestFileQueue_SharedPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "staged_txs.json")
	a := newFileQueueAt(t, path)
	b := newFileQueueAt(t, path)

	require.NoError(t, a.Stage(ctx, rec("N1")))
	assert.ErrorIs(t, b.Stage(ctx, rec("N1")), ErrAlreadyReserved)
	require.NoError(t, b.Stage(ctx, rec("N2")))

	records, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{rec("N1"), rec("N2")}, records)
}

func TestFileQueue_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staged_txs.json")
	holder := newFileQueueAt(t, path)
	q := newFileQueueAt(t, path)

	locked, err := holder.lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = holder.lock.Unlock() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = q.Stage(ctx, rec("N1"))
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
