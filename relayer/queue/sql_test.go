package queue

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/pdurable/relayer/store"
)

func TestSQLQueue_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "staged_txs.db")

	q, err := OpenSQLQueue(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, q.Stage(ctx, rec("N1")))
	require.NoError(t, q.Stage(ctx, rec("N2")))
	require.NoError(t, q.Close())

	q, err = OpenSQLQueue(path, zerolog.Nop())
	require.NoError(t, err)
	defer q.Close()

	records, err := q.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{rec("N1"), rec("N2")}, records)
	assert.ErrorIs(t, q.Stage(ctx, rec("N1")), ErrAlreadyReserved)
}

func TestSQLQueue_Revision(t *testing.T) {
	ctx := context.Background()
	q := backends()[1].open(t).(*SQLQueue)

	rev, err := q.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rev)

	require.NoError(t, q.Stage(ctx, rec("N1")))
	require.NoError(t, q.Replace(ctx, nil))
	assert.ErrorIs(t, q.Stage(ctx, Record{Nonce: "", Payload: "x"}), ErrInvalidRecord)

	rev, err = q.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rev)
}

func TestSQLQueue_ReplaceKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	q := backends()[1].open(t).(*SQLQueue)

	require.NoError(t, q.Stage(ctx, rec("N1")))
	require.NoError(t, q.Stage(ctx, rec("N2")))

	var before store.StagedTransaction
	require.NoError(t, q.db.Where("nonce = ?", "N2").First(&before).Error)

	require.NoError(t, q.Replace(ctx, []Record{rec("N2")}))

	var after store.StagedTransaction
	require.NoError(t, q.db.Where("nonce = ?", "N2").First(&after).Error)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
	assert.Equal(t, int64(1), after.Position)
}
