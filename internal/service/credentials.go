package service

import (
	"context"
	"errors"
	"strings"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/notify"
	"github.com/hongminglow/tripdesk/internal/session"
	"github.com/hongminglow/tripdesk/internal/storage"
)

// RegisterInput is the payload of a self-service registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	TenantID  string
}

// LoginResult is returned by a successful credential exchange.
type LoginResult struct {
	User         models.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// RefreshResult carries a fresh access token; the refresh token is returned unchanged.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Register creates an unverified, active user in an active tenant.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	user, err := s.register(ctx, in)
	s.metrics.AuthEvent("register", err)
	return user, err
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (models.User, error) {
	email := normalizeEmail(in.Email)
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	tenantID := strings.TrimSpace(in.TenantID)
	if email == "" || in.Password == "" || firstName == "" || lastName == "" || strings.TrimSpace(in.Role) == "" || tenantID == "" {
		return models.User{}, apperr.Validation(apperr.CodeValidation, "Email, password, first name, last name, role and tenant are required")
	}
	if !emailPattern.MatchString(email) {
		return models.User{}, apperr.Validation(apperr.CodeValidation, "Invalid email address")
	}
	if err := checkPassword(in.Password); err != nil {
		return models.User{}, err
	}
	role, ok := models.ParseRole(in.Role)
	if !ok || role == models.RoleSuperAdmin {
		return models.User{}, apperr.Validation(apperr.CodeInvalidRole, "Invalid role")
	}

	tenant, err := s.store.FindTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.NotFound(apperr.CodeTenantNotFound, "Tenant not found")
		}
		return models.User{}, internal("failed to load tenant", err)
	}
	if !tenant.Active() {
		return models.User{}, apperr.Validation(apperr.CodeTenantInactive, "Tenant is not active")
	}

	errExists := apperr.Conflict(apperr.CodeUserExists, "User with this email already exists")
	if _, err := s.store.FindUserByEmail(ctx, email, tenantID); err == nil {
		return models.User{}, errExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, internal("failed to look up user", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, internal("failed to hash password", err)
	}
	verification, err := auth.NewOpaqueToken()
	if err != nil {
		return models.User{}, internal("failed to generate verification token", err)
	}

	created, err := s.store.CreateUser(ctx, models.User{
		Email:             email,
		FirstName:         firstName,
		LastName:          lastName,
		Role:              role,
		TenantID:          tenantID,
		Status:            models.StatusActive,
		EmailVerified:     false,
		PasswordHash:      hash,
		VerificationToken: verification,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, errExists
		}
		return models.User{}, internal("failed to create user", err)
	}

	data := notify.Context{FirstName: created.FirstName, TenantID: created.TenantID}
	if err := s.notifier.SendVerificationEmail(ctx, created.Email, verification, data); err != nil {
		s.log.Warnw("verification email failed", "userId", created.ID, "err", err)
	}

	s.log.Infow("user registered", "userId", created.ID, "tenantId", tenantID, "role", role)
	return created.Sanitized(), nil
}

// Login exchanges credentials for a token pair. An empty tenantID resolves tenant-less
// (super admin) accounts only.
func (s *AuthService) Login(ctx context.Context, email, password, tenantID string) (LoginResult, error) {
	res, err := s.login(ctx, email, password, tenantID)
	s.metrics.AuthEvent("login", err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, email, password, tenantID string) (LoginResult, error) {
	email = normalizeEmail(email)
	tenantID = strings.TrimSpace(tenantID)
	if email == "" || password == "" {
		return LoginResult{}, apperr.Validation(apperr.CodeValidation, "Email and password are required")
	}

	user, err := s.store.FindUserByEmail(ctx, email, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LoginResult{}, errInvalidCredentials
		}
		return LoginResult{}, internal("failed to look up user", err)
	}
	if !user.Active() {
		return LoginResult{}, apperr.Unauthorized(apperr.CodeAccountInactive, "Account is not active")
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return LoginResult{}, errInvalidCredentials
	}
	if tenantID != "" {
		tenant, err := s.store.FindTenantByID(ctx, tenantID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return LoginResult{}, internal("failed to load tenant", err)
		}
		if err != nil || !tenant.Active() {
			return LoginResult{}, apperr.Unauthorized(apperr.CodeTenantInactive, "Tenant is not active")
		}
	}

	pair, err := s.tokens.IssueTokenPair(auth.ClaimsFor(user))
	if err != nil {
		return LoginResult{}, internal("failed to issue tokens", err)
	}
	now := s.now()
	user.LastLoginAt = &now
	saved, err := s.save(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	rec := session.Record{UserID: user.ID, TenantID: user.TenantID, CreatedAt: now}
	if err := s.sessions.Put(ctx, user.ID, pair.RefreshToken, rec, s.tokens.RefreshTTL()); err != nil {
		return LoginResult{}, internal("failed to store session", err)
	}

	s.log.Infow("user logged in", "userId", user.ID, "tenantId", user.TenantID)
	return LoginResult{
		User:         saved.Sanitized(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// RefreshAccessToken issues a new access token for a live refresh token. The refresh
// token itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (RefreshResult, error) {
	res, err := s.refresh(ctx, refreshToken)
	s.metrics.AuthEvent("refresh", err)
	return res, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if refreshToken == "" {
		return RefreshResult{}, apperr.Validation(apperr.CodeRefreshTokenRequired, "Refresh token is required")
	}
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{}, apperr.Unauthorized(apperr.CodeInvalidRefreshToken, "Invalid or expired refresh token").Wrap(err)
	}

	rec, err := s.sessions.Get(ctx, claims.UserID, refreshToken)
	if err != nil {
		return RefreshResult{}, internal("failed to load session", err)
	}
	if rec == nil {
		return RefreshResult{}, apperr.Unauthorized(apperr.CodeTokenRevoked, "Refresh token has been revoked")
	}

	user, err := s.loadUser(ctx, claims.UserID, apperr.Unauthorized(apperr.CodeUserNotFound, "User not found"))
	if err != nil {
		return RefreshResult{}, err
	}
	if !user.Active() {
		return RefreshResult{}, apperr.Unauthorized(apperr.CodeUserInactive, "User account is not active")
	}

	access, err := s.tokens.IssueAccessToken(auth.ClaimsFor(user))
	if err != nil {
		return RefreshResult{}, internal("failed to issue access token", err)
	}
	return RefreshResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    s.tokens.ExpiresIn(),
	}, nil
}

// Logout revokes one refresh token. Repeating it is harmless.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	err := s.logout(ctx, userID, refreshToken)
	s.metrics.AuthEvent("logout", err)
	return err
}

func (s *AuthService) logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return apperr.Validation(apperr.CodeRefreshTokenRequired, "Refresh token is required")
	}
	if err := s.sessions.Delete(ctx, userID, refreshToken); err != nil {
		return internal("failed to revoke session", err)
	}
	return nil
}
