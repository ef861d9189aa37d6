// Package server provides the HTTP REST API for the paper search service.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/dispatch"
)

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MetricsPath exposes the Prometheus handler at this path. Empty
	// disables the endpoint.
	MetricsPath string
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	engine     *dispatch.Engine
	logger     zerolog.Logger
	cfg        Config
}

// NewServer creates a new HTTP server over the dispatch engine.
func NewServer(cfg Config, engine *dispatch.Engine, logger zerolog.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: logger.With().Str("component", "http-server").Logger(),
		cfg:    cfg,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.loggingMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.cfg.MetricsPath != "" {
		r.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/search", s.search)

		r.Get("/sources", s.listSources)
		r.Get("/sources/{sourceID}", s.getSource)

		// DOIs contain slashes, so the identifier is matched as a
		// trailing wildcard rather than a single path segment.
		r.Get("/papers/doi/*", s.lookupDOI)

		// Paper identifiers may contain slashes too (old-style arXiv
		// ids, preprint DOIs), so they travel in query or body.
		r.Get("/sources/{sourceID}/citations", s.citations)
		r.Post("/sources/{sourceID}/download", s.download)
		r.Post("/sources/{sourceID}/read", s.read)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready once at least one source is registered.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	registry := s.engine.Registry()
	if registry == nil || registry.IsEmpty() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  "no sources registered",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ready",
		"sources": registry.Len(),
	})
}
