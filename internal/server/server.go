// Package server exposes the redaction engine over HTTP: POST /v1/redact
// and POST /v1/restore, with optional SQLite-backed session persistence so
// a mapping does not have to travel with the redacted text.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Xaisr/redactor"
	"github.com/Xaisr/redactor/internal/otel"
	"github.com/Xaisr/redactor/store"
)

const defaultTimeout = 60 * time.Second

// Server holds the HTTP API dependencies.
type Server struct {
	router    *chi.Mux
	redactor  *redactor.Redactor
	sessions  *store.Store // nil disables session persistence
	version   string
	startTime time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithSessionStore enables session persistence for redact/restore.
func WithSessionStore(s *store.Store) Option {
	return func(srv *Server) { srv.sessions = s }
}

// WithVersion sets the version string reported by /health.
func WithVersion(v string) Option {
	return func(srv *Server) { srv.version = v }
}

// New builds a Server around a configured Redactor.
func New(r *redactor.Redactor, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		redactor:  r,
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultTimeout))
	r.Use(otel.Middleware())

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/redact", s.handleRedact)
		r.Post("/restore", s.handleRestore)
		r.Get("/recognizers", s.handleRecognizers)
	})

	return r
}
