package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	"github.com/pushchain/pdurable/relayer/metrics"
	"github.com/pushchain/pdurable/relayer/queue"
)

type mockQueue struct {
	records []queue.Record
	err     error
}

func (m *mockQueue) Load(context.Context) ([]queue.Record, error) {
	return m.records, m.err
}

type mockHealth bool

func (m mockHealth) IsHealthy(context.Context) bool { return bool(m) }

func newTestServer(t *testing.T, q QueueReader, health HealthChecker) *Server {
	return NewServer(zerolog.New(zerolog.NewTestWriter(t)), 0, q, health, metrics.New())
}

// stagedRecord returns a durable transaction signed by the fee payer only,
// with one co-signer slot left empty.
func stagedRecord(t *testing.T) (queue.Record, *solana.Transaction) {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	cosigner, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	nonceAccount, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ix := solana.NewInstruction(solana.MemoProgramID,
		solana.AccountMetaSlice{solana.Meta(cosigner.PublicKey()).SIGNER()}, []byte("mint"))
	state := &svm.NonceState{Nonce: solana.HashFromBytes(cosigner.PublicKey().Bytes()), Authority: payer.PublicKey()}
	tx, err := svm.NewTxBuilder().BuildDurable(nonceAccount.PublicKey(), state, payer.PublicKey(), svm.Budget{}, []solana.Instruction{ix})
	require.NoError(t, err)
	require.NoError(t, svm.Sign(tx, payer))

	encoded, err := svm.EncodeTransaction(tx)
	require.NoError(t, err)
	return queue.Record{Nonce: nonceAccount.PublicKey().String(), Payload: encoded}, tx
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name           string
		health         HealthChecker
		expectedStatus int
	}{
		{name: "no RPC configured", health: nil, expectedStatus: http.StatusOK},
		{name: "RPC healthy", health: mockHealth(true), expectedStatus: http.StatusOK},
		{name: "RPC down", health: mockHealth(false), expectedStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{logger: zerolog.New(zerolog.NewTestWriter(t)), health: tt.health}
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()

			server.handleHealth(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestHandleQueue(t *testing.T) {
	rec, tx := stagedRecord(t)

	t.Run("lists staged transactions", func(t *testing.T) {
		server := newTestServer(t, &mockQueue{records: []queue.Record{rec}}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
		w := httptest.NewRecorder()

		server.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp struct {
			Data []QueueEntry `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		entry := resp.Data[0]
		assert.Equal(t, rec.Nonce, entry.Nonce)
		assert.Equal(t, tx.Signatures[0].String(), entry.Signature)
		assert.Equal(t, tx.Message.RecentBlockhash.String(), entry.Anchor)
		assert.Equal(t, 1, entry.MissingSignatures)
		assert.Positive(t, entry.Size)
		assert.Empty(t, entry.Error)
	})

	t.Run("empty queue is an empty list", func(t *testing.T) {
		server := newTestServer(t, &mockQueue{records: []queue.Record{}}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
		w := httptest.NewRecorder()

		server.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})

	t.Run("undecodable payload is reported, not hidden", func(t *testing.T) {
		bad := queue.Record{Nonce: "N1", Payload: "0OIl"}
		server := newTestServer(t, &mockQueue{records: []queue.Record{bad}}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
		w := httptest.NewRecorder()

		server.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data []QueueEntry `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.NotEmpty(t, resp.Data[0].Error)
	})

	t.Run("corrupt queue", func(t *testing.T) {
		server := newTestServer(t, &mockQueue{err: queue.ErrCorruptQueue}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
		w := httptest.NewRecorder()

		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "corrupt")
	})
}

func TestHandleQueueEntry(t *testing.T) {
	rec, _ := stagedRecord(t)
	server := newTestServer(t, &mockQueue{records: []queue.Record{rec}}, nil)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/"+rec.Nonce, nil)
		w := httptest.NewRecorder()

		server.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data QueueEntry `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, rec.Nonce, resp.Data.Nonce)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/unknown", nil)
		w := httptest.NewRecorder()

		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("load error", func(t *testing.T) {
		failing := newTestServer(t, &mockQueue{err: errors.New("disk gone")}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/"+rec.Nonce, nil)
		w := httptest.NewRecorder()

		failing.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
