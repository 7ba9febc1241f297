// Package api exposes the RAG chat application over HTTP.
//
// Endpoints:
//
//	GET  /health                        liveness probe
//	GET  /ready                         readiness probe (pings the database)
//	POST /api/sessions                  create session
//	GET  /api/sessions/{id}             session history, settings and sources
//	PATCH /api/sessions/{id}/settings   update retrieval settings
//	POST /api/sessions/{id}/clear       clear history (sources survive)
//	DELETE /api/sessions/{id}           delete session
//	POST /api/chat                      synchronous chat (JSON)
//	POST /api/chat/stream               streaming chat (Server-Sent Events)
//	POST /api/ingest/files              multipart upload (PDF, text, markdown)
//	POST /api/ingest/url                fetch and index a web page
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints
//   - session.go: session management endpoints
//   - chat.go: chat endpoints, including the SSE stream
//   - ingest.go: document ingestion endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/chat"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/ingest"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/session"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "localhost:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// Uploads of large PDFs need headroom here.
	ReadTimeout = 120 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Streaming chat turns can run long.
	WriteTimeout = 300 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the RAG API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health  *HealthHandler
	session *SessionHandler
	chat    *ChatHandler
	ingest  *IngestHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(store *session.Store, engine *chat.Engine, ingestor *ingest.Ingestor, pool *pgxpool.Pool, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		health:  NewHealthHandler(pool, logger),
		session: NewSessionHandler(store, logger),
		chat:    NewChatHandler(engine, store, logger),
		ingest:  NewIngestHandler(ingestor, store, logger),
	}

	s.health.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.ingest.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
