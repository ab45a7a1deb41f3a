package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/pdurable/relayer/config"
	"github.com/pushchain/pdurable/relayer/keys"
)

// fakeCluster answers the JSON-RPC calls the commands make. Sent transactions
// are recorded and reported by getSignatureStatuses with the status returned
// by statusFor.
type fakeCluster struct {
	server   *httptest.Server
	mu       sync.Mutex
	accounts map[string]map[string]interface{}
	sent     []*solana.Transaction
	polls    map[string]int
	// statusFor returns the confirmation status reported on the n-th poll of
	// a sent signature, starting at 1.
	statusFor func(n int) string
}

func newFakeCluster(t *testing.T) *fakeCluster {
	t.Helper()
	f := &fakeCluster{
		accounts:  map[string]map[string]interface{}{},
		polls:     map[string]int{},
		statusFor: func(int) string { return "finalized" },
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// setAccount makes address hold an account owned by owner.
func (f *fakeCluster) setAccount(address, owner solana.PublicKey, executable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[address.String()] = map[string]interface{}{
		"data":       []string{"", "base64"},
		"executable": executable,
		"lamports":   1141440,
		"owner":      owner.String(),
		"rentEpoch":  0,
		"space":      0,
	}
}

func (f *fakeCluster) transactions() []*solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*solana.Transaction(nil), f.sent...)
}

func (f *fakeCluster) pollCount(sig solana.Signature) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[sig.String()]
}

func (f *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     interface{}   `json:"id"`
		Method string        `json:"method"`
		Params []interface{} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	result, rpcErr := f.handle(req.Method, req.Params)
	f.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeCluster) handle(method string, params []interface{}) (interface{}, map[string]interface{}) {
	slot := map[string]interface{}{"slot": 100}
	switch method {
	case "getHealth":
		return "ok", nil
	case "getLatestBlockhash":
		return map[string]interface{}{
			"context": slot,
			"value": map[string]interface{}{
				"blockhash":            solana.HashFromBytes(make([]byte, 32)).String(),
				"lastValidBlockHeight": 300,
			},
		}, nil
	case "getMinimumBalanceForRentExemption":
		return 222222720, nil
	case "getAccountInfo":
		address, _ := params[0].(string)
		account, ok := f.accounts[address]
		if !ok {
			return map[string]interface{}{"context": slot, "value": nil}, nil
		}
		return map[string]interface{}{"context": slot, "value": account}, nil
	case "sendTransaction":
		encoded, _ := params[0].(string)
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, map[string]interface{}{"code": -32602, "message": err.Error()}
		}
		tx, err := solana.TransactionFromBytes(raw)
		if err != nil {
			return nil, map[string]interface{}{"code": -32602, "message": err.Error()}
		}
		f.sent = append(f.sent, tx)
		return tx.Signatures[0].String(), nil
	case "getSignatureStatuses":
		sigs, _ := params[0].([]interface{})
		value := make([]interface{}, len(sigs))
		for i, s := range sigs {
			if !f.knows(s.(string)) {
				continue
			}
			f.polls[s.(string)]++
			value[i] = map[string]interface{}{
				"slot":               99,
				"confirmations":      nil,
				"err":                nil,
				"confirmationStatus": f.statusFor(f.polls[s.(string)]),
			}
		}
		return map[string]interface{}{"context": slot, "value": value}, nil
	}
	return nil, map[string]interface{}{"code": -32601, "message": "Method not found"}
}

func (f *fakeCluster) knows(sig string) bool {
	for _, tx := range f.sent {
		if tx.Signatures[0].String() == sig {
			return true
		}
	}
	return false
}

// initAgainst writes a config pointing at f with a fresh fee payer and fast
// confirmation polling. It returns the home directory and the payer.
func initAgainst(t *testing.T, f *fakeCluster, programID solana.PublicKey) (string, solana.PrivateKey) {
	t.Helper()
	home := isolate(t)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	keypair := filepath.Join(t.TempDir(), "payer.json")
	require.NoError(t, keys.SaveKeypair(keypair, payer))

	_, err = run(t, home, "init", "--rpc-url", f.server.URL, "--keypair", keypair)
	require.NoError(t, err)

	cfg, err := config.Load(home)
	require.NoError(t, err)
	cfg.ConfirmTimeoutSeconds = 2
	cfg.ConfirmPollIntervalMs = 5
	if !programID.IsZero() {
		cfg.ProgramID = programID.String()
	}
	require.NoError(t, config.Save(&cfg, home))
	return home, payer
}
