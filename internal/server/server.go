package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/acollet/memwatch/internal/logging"
	"github.com/acollet/memwatch/internal/report"
)

// Timeouts for the HTTP server. Read and write are short: every endpoint
// serves a small in-memory payload.
const (
	readTimeout     = 5 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Reporter provides the current monitoring session report. The watcher
// satisfies it.
type Reporter interface {
	Report() report.Report
}

// Server serves the monitoring state over HTTP.
type Server struct {
	addr     string
	reporter Reporter
	metrics  *Metrics
	security SecurityConfig
	logger   logging.Logger
}

// New creates a server bound to the given reporter and metrics.
func New(addr string, reporter Reporter, metrics *Metrics, logger logging.Logger) *Server {
	return &Server{
		addr:     addr,
		reporter: reporter,
		metrics:  metrics,
		security: DefaultSecurityConfig(),
		logger:   logger,
	}
}

// Metrics returns the server's instrument set, for wiring into the
// watcher's OnSample hook.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.metricsMiddleware(s.handleMetrics))
	mux.HandleFunc("/report", s.metricsMiddleware(s.handleReport))
	mux.HandleFunc("/healthz", s.metricsMiddleware(s.handleHealth))

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", logging.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown", err)
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", err)
			return err
		}
		return nil
	}
}

// metricsMiddleware tracks request counts and in-flight requests around the
// next handler, and applies the security headers.
func (s *Server) metricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	secured := SecurityMiddleware(s.security, next)
	return func(w http.ResponseWriter, r *http.Request) {
		s.metrics.IncrementActiveRequests()
		defer s.metrics.DecrementActiveRequests()
		secured(w, r)
	}
}

// handleMetrics serves the Prometheus exposition. GET only.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.rejectMethod(w, r)
		return
	}
	s.metrics.WritePrometheus(w, r)
}

// handleReport serves the current session report as JSON. GET only.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.rejectMethod(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.reporter.Report()); err != nil {
		s.logger.Error("encoding report", err)
	}
}

// handleHealth reports liveness. GET only.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.rejectMethod(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) rejectMethod(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("method not allowed",
		logging.String("method", r.Method),
		logging.String("path", r.URL.Path))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
