package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/config"
	"github.com/hongminglow/tripdesk/internal/http/handlers"
	"github.com/hongminglow/tripdesk/internal/http/respond"
	"github.com/hongminglow/tripdesk/internal/logger"
	"github.com/hongminglow/tripdesk/internal/metrics"
	"github.com/hongminglow/tripdesk/internal/middleware"
	"github.com/hongminglow/tripdesk/internal/service"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Auth    *service.AuthService
	Tokens  middleware.AccessVerifier
	Users   middleware.UserFinder
	Metrics *metrics.Metrics
	Logger  *zap.SugaredLogger
	// Ready lists the backing services checked by /ready.
	Ready map[string]handlers.Pinger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// NewRouter wires middleware and routes.
func NewRouter(cfg config.Config, d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logging(d.Logger),
		middleware.Recover,
		d.Metrics.Instrument,
		middleware.CORS(cfg.CORSOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, nil, apperr.NotFound(apperr.CodeRouteNotFound, "Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Reject(w, http.StatusMethodNotAllowed, apperr.CodeMethodNotAllowed, "Method not allowed")
	})

	handlers.NewHealthHandler(time.Now(), d.Ready).Routes(r)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	handlers.NewAuthHandler(d.Auth, d.Tokens, d.Users, limiter, d.Logger).Routes(r)
	handlers.NewUserHandler(d.Auth, d.Tokens, d.Users, d.Logger).Routes(r)

	return r
}

// New builds a ready server.
func New(cfg config.Config, d Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
