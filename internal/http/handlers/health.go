package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/tripdesk/internal/http/respond"
	"github.com/hongminglow/tripdesk/internal/middleware"
)

const readyTimeout = 2 * time.Second

// Pinger is a backing service the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and readiness.
type HealthHandler struct {
	startedAt time.Time
	deps      map[string]Pinger
}

// NewHealthHandler creates the probe handler. deps are checked by /ready.
func NewHealthHandler(startedAt time.Time, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, deps: deps}
}

// Routes wires /health and /ready.
func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, "ok", map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

func (h *HealthHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			middleware.LoggerFrom(r.Context()).Warnw("readiness check failed", "dependency", name, "err", err)
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	message := "ready"
	if status != http.StatusOK {
		message = "not ready"
	}
	respond.JSON(w, status, message, checks)
}
