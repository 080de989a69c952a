// Package api exposes the ingestion-and-retrieval backend over HTTP.
//
// Endpoints:
//
//	POST /api/chatbots/{chatbotID}/syncs/{kind}/{syncID}/sync-now → enqueue a sync job
//	GET  /api/jobs/{jobID}                                        → job + source status
//	POST /api/chatbots/{chatbotID}/query                          → search or grounded answer
//	GET  /api/chatbots/{chatbotID}/documents/count                → ingested document count
//	GET  /health, GET /ready                                      → probes
//
// Authentication and permissions live in a fronting layer; the company
// scope arrives in the X-Company-ID header it sets.
//
// File structure:
//   - server.go: router setup and server lifecycle
//   - sync.go: sync-now and job status endpoints
//   - query.go: query and document count endpoints
//   - health.go: liveness and readiness probes
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to resist slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout  = 30 * time.Second
	WriteTimeout = 60 * time.Second
	IdleTimeout  = 120 * time.Second
)

// Server is the HTTP server.
type Server struct {
	router chi.Router
	logger *slog.Logger
}

// NewServer creates a server with all routes registered. pool may be
// nil; the readiness probe then reports not ready.
func NewServer(syncs SyncService, queries QueryService, answers AnswerService, pool *pgxpool.Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	health := &HealthHandler{pool: pool, logger: logger}
	r.Get("/health", health.liveness)
	r.Get("/ready", health.readiness)

	sync := &SyncHandler{syncs: syncs, logger: logger}
	query := &QueryHandler{queries: queries, answers: answers, logger: logger}
	r.Route("/api", func(r chi.Router) {
		r.Post("/chatbots/{chatbotID}/syncs/{kind}/{syncID}/sync-now", sync.syncNow)
		r.Get("/jobs/{jobID}", sync.jobStatus)
		r.Post("/chatbots/{chatbotID}/query", query.query)
		r.Get("/chatbots/{chatbotID}/documents/count", query.documentCount)
	})

	return &Server{router: r, logger: logger}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server and blocks until the context is canceled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
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

// requestLogger logs each request at debug level with its duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}
