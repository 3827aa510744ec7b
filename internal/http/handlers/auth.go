package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/authz"
	"github.com/hongminglow/tripdesk/internal/http/respond"
	"github.com/hongminglow/tripdesk/internal/middleware"
	"github.com/hongminglow/tripdesk/internal/models/dto"
	"github.com/hongminglow/tripdesk/internal/service"
)

// AuthHandler owns the /api/auth endpoints.
type AuthHandler struct {
	svc     *service.AuthService
	tokens  middleware.AccessVerifier
	users   middleware.UserFinder
	limiter *middleware.RateLimiter
	log     *zap.SugaredLogger
}

// NewAuthHandler constructs the handler. limiter may be nil.
func NewAuthHandler(svc *service.AuthService, tokens middleware.AccessVerifier, users middleware.UserFinder, limiter *middleware.RateLimiter, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens, users: users, limiter: limiter, log: log}
}

// Routes attaches auth routes to r.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(h.limiter))
			r.Post("/register", h.handleRegister)
			r.Post("/login", h.handleLogin)
			r.Post("/forgot-password", h.handleForgotPassword)
			r.Post("/reset-password", h.handleResetPassword)
			r.Post("/resend-verification", h.handleResendVerification)
		})

		r.Post("/refresh-token", h.handleRefresh)
		r.Get("/verify-email/{token}", h.handleVerifyEmail)
		r.With(middleware.OptionalAuthenticate(h.tokens, h.users, h.log)).Get("/session", h.handleSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(h.tokens, h.users, h.log))
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
			r.Post("/change-password", h.handleChangePassword)
			r.Get("/permissions", h.handlePermissions)
		})
	})
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, middleware.LoggerFrom(r.Context()), err)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		TenantID:  req.TenantID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "User registered successfully. Please verify your email.", user)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password, req.TenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Login successful", dto.LoginResponse{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	})
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Token refreshed successfully", dto.RefreshResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	var req dto.LogoutRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Logout(r.Context(), id.UserID, req.RefreshToken); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Email verified successfully", user)
}

func (h *AuthHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	msg, err := h.svc.RequestPasswordReset(r.Context(), req.Email, req.TenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, msg, dto.MessageResponse{Message: msg})
}

func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Password reset successfully. Please log in again.", nil)
}

func (h *AuthHandler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendVerificationRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	msg, err := h.svc.ResendVerification(r.Context(), req.Email, req.TenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, msg, dto.MessageResponse{Message: msg})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	user, err := h.svc.GetCurrentUser(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Current user", user)
}

func (h *AuthHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Password changed successfully. Please log in again.", nil)
}

func (h *AuthHandler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, "Permissions", dto.PermissionsResponse{
		Role:        id.Role,
		Level:       authz.Level(id.Role),
		Permissions: authz.PermissionsFor(id.Role),
	})
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusOK, "No active session", dto.SessionResponse{Authenticated: false})
		return
	}
	user := id.User
	respond.JSON(w, http.StatusOK, "Active session", dto.SessionResponse{Authenticated: true, User: &user})
}

// identityOrFail writes AUTH_REQUIRED when no identity is attached.
func identityOrFail(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respond.Error(w, middleware.LoggerFrom(r.Context()), apperr.Unauthorized(apperr.CodeAuthRequired, "Authentication required"))
	}
	return id, ok
}
