// Package http exposes the document Q&A operations over HTTP.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/metrics"
)

// Options configures the listener and request limits.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// Server is the HTTP server for the document Q&A API.
type Server struct {
	query    *usecases.QueryUseCase
	ingest   *usecases.IngestUseCase
	kb       ports.KnowledgeBase
	embedder ports.EmbeddingRuntime
	sessions ports.SessionStore
	metrics  *metrics.Metrics
	opts     Options
	handler  http.Handler
}

// NewServer creates a new HTTP server and registers its routes.
func NewServer(
	queryUC *usecases.QueryUseCase,
	ingestUC *usecases.IngestUseCase,
	kb ports.KnowledgeBase,
	embedder ports.EmbeddingRuntime,
	sessions ports.SessionStore,
	m *metrics.Metrics,
	opts Options,
) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		query:    queryUC,
		ingest:   ingestUC,
		kb:       kb,
		embedder: embedder,
		sessions: sessions,
		metrics:  m,
		opts:     opts,
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /kb", s.handleListKB)
	s.route(mux, "GET /kb/{filename}", s.handleGetKBFile)
	s.route(mux, "POST /process", s.handleProcess)
	s.route(mux, "POST /ask", s.handleAsk)
	s.route(mux, "POST /ask/stream", s.handleAskStream)
	s.route(mux, "POST /clear", s.handleClear)
	s.route(mux, "POST /search/kb", s.handleSearchKB)
	s.route(mux, "GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", m.Handler())

	s.handler = corsMiddleware(opts.AllowedOrigins, loggingMiddleware(mux))
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// route registers h under pattern and counts its responses by pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.ObserveRequest(pattern, rec.status)
	}))
}

// Start runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      300 * time.Second,
	}

	log.Info().Str("addr", s.opts.Addr).Msg("docqa server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("docqa server stopped")
	return nil
}
