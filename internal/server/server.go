// Package server exposes the anonymization engine and vault over HTTP. The
// host UI and any browser-side message routing stay out of scope; this API is
// the engine's boundary surface.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MathFreedom/SafeMask/internal/anonymize"
	"github.com/MathFreedom/SafeMask/internal/otel"
	"github.com/MathFreedom/SafeMask/internal/vault"
)

const defaultTimeout = 60 * time.Second

// Server holds the dependencies for the HTTP API.
type Server struct {
	router      *chi.Mux
	engine      *anonymize.Engine
	vault       *vault.Vault
	policy      *anonymize.Policy
	apiKeys     map[string]string // key → caller name
	limiter     *RateLimiter
	corsOrigins []string
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter sets per-caller and global request rate limits.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithCORSOrigins sets allowed CORS origins (["*"] for any).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// NewServer builds a Server. defaultPolicy applies when a request carries no
// mode table of its own. apiKeys maps API key → caller name; an empty map
// disables every authenticated route.
func NewServer(engine *anonymize.Engine, v *vault.Vault, defaultPolicy *anonymize.Policy, apiKeys map[string]string, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		engine:      engine,
		vault:       v,
		policy:      defaultPolicy,
		apiKeys:     apiKeys,
		corsOrigins: []string{"*"},
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.apiKeys == nil {
		s.apiKeys = make(map[string]string)
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
	r.Use(CORSMiddleware(s.corsOrigins))

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	r.Get("/v1/health", s.handleHealth)

	// Authenticated API group
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKeys))
		r.Use(RateLimitMiddleware(s.limiter))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Post("/v1/anonymize", s.handleAnonymize)
		r.Post("/v1/deanonymize", s.handleDeanonymize)
		r.Post("/v1/diff", s.handleDiff)

		r.Get("/v1/vault/status", s.handleVaultStatus)
		r.Get("/v1/vault/export", s.handleVaultExport)
		r.Post("/v1/vault/import", s.handleVaultImport)
		r.Post("/v1/vault/clear", s.handleVaultClear)
		r.Post("/v1/vault/lock", s.handleVaultLock)
		r.Post("/v1/vault/unlock", s.handleVaultUnlock)
		r.Get("/v1/vault/audit", s.handleVaultAudit)
	})

	return r
}
