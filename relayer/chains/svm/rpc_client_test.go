package svm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayerrors "github.com/pushchain/pdurable/relayer/errors"
)

type rpcHandler func(params []interface{}) (result interface{}, rpcErr map[string]interface{})

// newMockRPCServer serves JSON-RPC requests by method name. getHealth answers
// "ok" unless overridden.
func newMockRPCServer(t *testing.T, handlers map[string]rpcHandler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		method, _ := reqBody["method"].(string)
		params, _ := reqBody["params"].([]interface{})

		response := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      reqBody["id"],
		}
		handler, ok := handlers[method]
		switch {
		case ok:
			result, rpcErr := handler(params)
			if rpcErr != nil {
				response["error"] = rpcErr
			} else {
				response["result"] = result
			}
		case method == "getHealth":
			response["result"] = "ok"
		default:
			response["error"] = map[string]interface{}{"code": -32601, "message": "Method not found"}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRPCClient(t *testing.T, urls ...string) *RPCClient {
	t.Helper()
	client, err := NewRPCClient(context.Background(), RPCClientConfig{
		URLs:           urls,
		RequestTimeout: 2 * time.Second,
	}, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	return client
}

func TestNewRPCClient(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	t.Run("no urls", func(t *testing.T) {
		_, err := NewRPCClient(context.Background(), RPCClientConfig{}, logger)
		assert.ErrorContains(t, err, "no RPC URLs provided")
	})

	t.Run("skips unhealthy endpoints", func(t *testing.T) {
		sick := newMockRPCServer(t, map[string]rpcHandler{
			"getHealth": func([]interface{}) (interface{}, map[string]interface{}) {
				return nil, map[string]interface{}{"code": -32005, "message": "Node is behind by 42 slots"}
			},
		})
		healthy := newMockRPCServer(t, nil)

		client := newTestRPCClient(t, sick.URL, healthy.URL)
		assert.Len(t, client.clients, 1)
		assert.Equal(t, rpc.CommitmentConfirmed, client.Commitment())
	})

	t.Run("genesis hash mismatch", func(t *testing.T) {
		server := newMockRPCServer(t, map[string]rpcHandler{
			"getGenesisHash": func([]interface{}) (interface{}, map[string]interface{}) {
				return "EtWTRABZaYq6iMfeYKouRu166VU2xqa1wcaWoxPkrZBG", nil
			},
		})

		_, err := NewRPCClient(context.Background(), RPCClientConfig{
			URLs:                []string{server.URL},
			ExpectedGenesisHash: "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
		}, logger)
		require.Error(t, err)
		assert.True(t, relayerrors.IsChainError(err, relayerrors.ErrCodeNetwork))

		client, err := NewRPCClient(context.Background(), RPCClientConfig{
			URLs:                []string{server.URL},
			ExpectedGenesisHash: "EtWTRABZaYq6iMfeYKouRu166VU2xqa1",
		}, logger)
		require.NoError(t, err)
		assert.True(t, client.IsHealthy(context.Background()))
	})
}

func TestRPCClient_GetAccountInfo(t *testing.T) {
	authority := newKey(t).PublicKey()
	nonce := solana.HashFromBytes(newKey(t).PublicKey().Bytes())
	data := encodeNonceAccount(t, 1, 1, authority, nonce, 5000)
	known := newKey(t).PublicKey()

	server := newMockRPCServer(t, map[string]rpcHandler{
		"getAccountInfo": func(params []interface{}) (interface{}, map[string]interface{}) {
			ctx := map[string]interface{}{"slot": 100}
			if params[0] != known.String() {
				return map[string]interface{}{"context": ctx, "value": nil}, nil
			}
			return map[string]interface{}{
				"context": ctx,
				"value": map[string]interface{}{
					"data":       []interface{}{base64.StdEncoding.EncodeToString(data), "base64"},
					"executable": false,
					"lamports":   1447680,
					"owner":      solana.SystemProgramID.String(),
					"rentEpoch":  0,
					"space":      80,
				},
			}, nil
		},
	})
	client := newTestRPCClient(t, server.URL)

	state, err := NewNonceReader(client).Read(context.Background(), known)
	require.NoError(t, err)
	assert.Equal(t, authority, state.Authority)
	assert.Equal(t, nonce, state.Nonce)

	_, err = NewNonceReader(client).Read(context.Background(), newKey(t).PublicKey())
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}

func TestRPCClient_SendRawTransaction(t *testing.T) {
	sig := solana.SignatureFromBytes(append(make([]byte, 63), 9))

	t.Run("success", func(t *testing.T) {
		server := newMockRPCServer(t, map[string]rpcHandler{
			"sendTransaction": func(params []interface{}) (interface{}, map[string]interface{}) {
				return sig.String(), nil
			},
		})
		got, err := newTestRPCClient(t, server.URL).SendRawTransaction(context.Background(), []byte{1, 2, 3}, true)
		require.NoError(t, err)
		assert.Equal(t, sig, got)
	})

	t.Run("preflight failure is a transaction error and does not fail over", func(t *testing.T) {
		var calls int32
		reject := func(params []interface{}) (interface{}, map[string]interface{}) {
			atomic.AddInt32(&calls, 1)
			return nil, map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed: Blockhash not found",
			}
		}
		a := newMockRPCServer(t, map[string]rpcHandler{"sendTransaction": reject})
		b := newMockRPCServer(t, map[string]rpcHandler{"sendTransaction": reject})

		_, err := newTestRPCClient(t, a.URL, b.URL).SendRawTransaction(context.Background(), []byte{1}, false)
		require.Error(t, err)
		assert.True(t, relayerrors.IsChainError(err, relayerrors.ErrCodeTransaction))
		assert.False(t, relayerrors.IsRetryable(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("other rpc errors fail over", func(t *testing.T) {
		behind := newMockRPCServer(t, map[string]rpcHandler{
			"sendTransaction": func([]interface{}) (interface{}, map[string]interface{}) {
				return nil, map[string]interface{}{"code": -32005, "message": "Node is behind"}
			},
		})
		ok := newMockRPCServer(t, map[string]rpcHandler{
			"sendTransaction": func([]interface{}) (interface{}, map[string]interface{}) {
				return sig.String(), nil
			},
		})

		client := newTestRPCClient(t, behind.URL, ok.URL)
		got, err := client.SendRawTransaction(context.Background(), []byte{1}, false)
		require.NoError(t, err)
		assert.Equal(t, sig, got)
	})
}

func TestRPCClient_BlockhashAndStatus(t *testing.T) {
	blockhash := solana.HashFromBytes(newKey(t).PublicKey().Bytes())
	sig := solana.SignatureFromBytes(append(make([]byte, 63), 1))

	server := newMockRPCServer(t, map[string]rpcHandler{
		"getLatestBlockhash": func([]interface{}) (interface{}, map[string]interface{}) {
			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 100},
				"value": map[string]interface{}{
					"blockhash":            blockhash.String(),
					"lastValidBlockHeight": 250,
				},
			}, nil
		},
		"getSignatureStatuses": func(params []interface{}) (interface{}, map[string]interface{}) {
			sigs, _ := params[0].([]interface{})
			value := []interface{}{nil}
			if len(sigs) == 1 && sigs[0] == sig.String() {
				value[0] = map[string]interface{}{
					"slot":               99,
					"confirmations":      nil,
					"err":                nil,
					"confirmationStatus": "finalized",
				}
			}
			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 100},
				"value":   value,
			}, nil
		},
	})
	client := newTestRPCClient(t, server.URL)
	ctx := context.Background()

	got, err := client.GetLatestBlockhash(ctx)
	require.NoError(t, err)
	assert.Equal(t, blockhash, got)

	status, err := client.GetSignatureStatus(ctx, sig, true)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, rpc.ConfirmationStatusFinalized, status.ConfirmationStatus)

	status, err = client.GetSignatureStatus(ctx, solana.Signature{}, false)
	require.NoError(t, err)
	assert.Nil(t, status)

	client.Close()
	_, err = client.GetLatestBlockhash(ctx)
	assert.ErrorContains(t, err, "no RPC clients available")
}

func TestRPCClient_GetMinimumBalanceForRentExemption(t *testing.T) {
	var requested float64
	server := newMockRPCServer(t, map[string]rpcHandler{
		"getMinimumBalanceForRentExemption": func(params []interface{}) (interface{}, map[string]interface{}) {
			requested, _ = params[0].(float64)
			return 222222720, nil
		},
	})
	client := newTestRPCClient(t, server.URL)

	lamports, err := client.GetMinimumBalanceForRentExemption(context.Background(), 31800)
	require.NoError(t, err)
	assert.Equal(t, uint64(222222720), lamports)
	assert.Equal(t, float64(31800), requested)
}
