package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	"github.com/pushchain/pdurable/relayer/queue"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil && !s.health.IsHealthy(r.Context()) {
		http.Error(w, "RPC unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleQueue handles GET /api/v1/queue
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	records, err := s.queue.Load(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load staging queue")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	entries := make([]QueueEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, Describe(rec))
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: entries, FetchedAt: time.Now().UTC()})
}

// handleQueueEntry handles GET /api/v1/queue/{nonce}
func (s *Server) handleQueueEntry(w http.ResponseWriter, r *http.Request) {
	nonce := mux.Vars(r)["nonce"]

	records, err := s.queue.Load(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load staging queue")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	for _, rec := range records {
		if rec.Nonce == nonce {
			writeJSON(w, http.StatusOK, QueryResponse{Data: Describe(rec), FetchedAt: time.Now().UTC()})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no transaction staged for nonce %s", nonce)})
}

// Describe summarizes rec without touching the network. Decode failures are
// reported in Error rather than returned.
func Describe(rec queue.Record) QueueEntry {
	entry := QueueEntry{Nonce: rec.Nonce}
	raw, err := svm.DecodeRaw(rec.Payload)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Size = len(raw)

	tx, err := svm.DecodeTransaction(rec.Payload)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if sig, ok := svm.FeePayerSignature(tx); ok {
		entry.Signature = sig.String()
	}
	entry.Anchor = tx.Message.RecentBlockhash.String()
	entry.MissingSignatures = len(svm.MissingSigners(tx))
	return entry
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
