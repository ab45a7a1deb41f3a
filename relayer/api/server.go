// Package api serves queue status, health and metrics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/pdurable/relayer/metrics"
)

// Server is the read-only status server of a running drainer.
type Server struct {
	logger  zerolog.Logger
	queue   QueueReader
	health  HealthChecker
	metrics *metrics.Metrics
	server  *http.Server
	addr    net.Addr
}

// NewServer creates a Server listening on port, or on any free port when
// port is 0. health and m may be nil.
func NewServer(logger zerolog.Logger, port int, q QueueReader, health HealthChecker, m *metrics.Metrics) *Server {
	s := &Server{
		logger:  logger.With().Str("component", "api").Logger(),
		queue:   q,
		health:  health,
		metrics: m,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the port and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start() error {
	if s.server == nil {
		return errors.New("query server is not initialized")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr()
	s.logger.Info().Str("addr", s.addr.String()).Msg("query server listening")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("query server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop waits for in-flight requests until ctx is done, then closes the
// remaining connections.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("query server shutdown: %w", err)
	}
	s.logger.Info().Msg("query server stopped")
	return nil
}
