// Package server provides the HTTP API for interactive redaction and run
// audit queries.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dativo-io/scrub/internal/audit"
	"github.com/dativo-io/scrub/internal/otel"
	"github.com/dativo-io/scrub/internal/redact"
)

const defaultTimeout = 60 * time.Second

// Server holds the dependencies for the HTTP API.
type Server struct {
	router     *chi.Mux
	evaluator  *redact.Evaluator
	auditStore *audit.Store
	apiKeys    map[string]bool
	startTime  time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithAuditStore enables the /v1/runs endpoints.
func WithAuditStore(s *audit.Store) Option {
	return func(srv *Server) { srv.auditStore = s }
}

// NewServer builds a Server. apiKeys is the set of accepted API keys; when
// empty, all authenticated routes reject with 401.
func NewServer(evaluator *redact.Evaluator, apiKeys map[string]bool, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		evaluator: evaluator,
		apiKeys:   apiKeys,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.apiKeys == nil {
		s.apiKeys = make(map[string]bool)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	r.Get("/v1/health", s.handleHealth)

	// Authenticated API group
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKeys))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Post("/v1/redact", s.handleRedact)

		r.Get("/v1/runs", s.handleRunsList)
		r.Get("/v1/runs/{id}", s.handleRunGet)
		r.Get("/v1/runs/{id}/verify", s.handleRunVerify)
	})

	return r
}
