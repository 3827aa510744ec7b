package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/tripdesk/internal/http/respond"
	"github.com/hongminglow/tripdesk/internal/middleware"
	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/models/dto"
	"github.com/hongminglow/tripdesk/internal/service"
)

// UserHandler owns administrative user endpoints.
type UserHandler struct {
	svc    *service.AuthService
	tokens middleware.AccessVerifier
	users  middleware.UserFinder
	log    *zap.SugaredLogger
}

// NewUserHandler constructs the handler.
func NewUserHandler(svc *service.AuthService, tokens middleware.AccessVerifier, users middleware.UserFinder, log *zap.SugaredLogger) *UserHandler {
	return &UserHandler{svc: svc, tokens: tokens, users: users, log: log}
}

// Routes attaches user routes to r.
func (h *UserHandler) Routes(r chi.Router) {
	r.Route("/api/users/{id}", func(r chi.Router) {
		r.Use(middleware.Authenticate(h.tokens, h.users, h.log))

		r.With(
			middleware.RequirePermission("users:update"),
			middleware.RequireRoleLevel(models.RoleTenantAdmin),
		).Patch("/status", h.handleUpdateStatus)

		r.With(middleware.RequireOwnership(middleware.OwnerFromPath("id"))).
			Post("/sessions/revoke", h.handleRevokeSessions)
	})
}

func (h *UserHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, middleware.LoggerFrom(r.Context()), err)
		return
	}
	user, err := h.svc.UpdateUserStatus(r.Context(), actor, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respond.Error(w, middleware.LoggerFrom(r.Context()), err)
		return
	}
	respond.JSON(w, http.StatusOK, "User status updated", user)
}

func (h *UserHandler) handleRevokeSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	n, err := h.svc.RevokeSessionsFor(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, middleware.LoggerFrom(r.Context()), err)
		return
	}
	respond.JSON(w, http.StatusOK, "Sessions revoked", dto.RevokeSessionsResponse{Revoked: n})
}
