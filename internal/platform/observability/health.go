// Package observability provides health checks and metrics for the engine.
//
// The Server exposes:
//   - /healthz: liveness probe (always returns OK once started)
//   - /readyz: readiness probe (flips true after first successful init)
//   - /metrics: Prometheus metrics endpoint
//   - /stats: a JSON snapshot of engine run statistics
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// StatsProvider supplies a point-in-time snapshot for the /stats endpoint.
type StatsProvider interface {
	Snapshot() map[string]int64
}

// Server serves health, readiness, metrics and stats endpoints for a
// long-running engine process.
type Server struct {
	port   int
	logger *zerolog.Logger
	stats  StatsProvider
	ready  atomic.Bool
}

// NewServer creates a Server. stats may be nil, in which case /stats
// reports an empty object.
func NewServer(port int, stats StatsProvider, logger *zerolog.Logger) *Server {
	return &Server{port: port, stats: stats, logger: logger}
}

// SetReady flips the readiness flag exposed by /readyz.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		//nolint:contextcheck // shutdown in signal handler is best-effort, non-inherited context intentional
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("health server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok")) //nolint:errcheck // best-effort write
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok")) //nolint:errcheck // best-effort write
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.stats == nil {
		_ = json.NewEncoder(w).Encode(map[string]int64{}) //nolint:errcheck,errchkjson // best-effort encode

		return
	}

	_ = json.NewEncoder(w).Encode(s.stats.Snapshot()) //nolint:errcheck,errchkjson // best-effort encode
}
