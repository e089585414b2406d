// Package server provides the HTTP API of the FAQ cache.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/engine"
	"github.com/hyperjump/faqcache/internal/watcher"
)

// requestTimeout bounds ordinary requests. Reconstruction gets the corpus timeout instead.
const requestTimeout = 60 * time.Second

// Server is the HTTP server for the cache API.
type Server struct {
	engine *engine.Engine
	watch  *watcher.Watcher
	logger *zap.Logger
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWatcher exposes the corpus watcher in the status endpoint.
func WithWatcher(w *watcher.Watcher) Option {
	return func(s *Server) {
		s.watch = w
	}
}

// NewServer creates a server for eng.
func NewServer(eng *engine.Engine, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: eng, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Post("/query", s.handleQuery)
			r.Post("/save", s.handleSave)
			r.Post("/delete", s.handleDelete)
			r.Post("/feedback", s.handleFeedback)
			r.Post("/reset", s.handleReset)
			r.Get("/stats", s.handleStats)
			r.Get("/status", s.handleStatus)
			r.Get("/export", s.handleExport)
			r.Get("/history", s.handleHistory)
		})
		r.Post("/reconstruct", s.handleReconstruct)
		r.Post("/clean-answers", s.handleCleanAnswers)
	})
	return r
}

// Start starts the HTTP server on addr and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
