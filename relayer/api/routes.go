package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

const apiPrefix = "/api/v1"

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Registered on the root router so a method mismatch answers 405.
	router.HandleFunc(apiPrefix+"/queue", s.handleQueue).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/queue/{nonce}", s.handleQueueEntry).Methods(http.MethodGet)

	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	return router
}
