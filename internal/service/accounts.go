package service

import (
	"context"
	"errors"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/storage"
)

// GetCurrentUser returns the sanitized record of userID.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (models.User, error) {
	user, err := s.loadUser(ctx, userID, apperr.NotFound(apperr.CodeUserNotFound, "User not found"))
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// UpdateUserStatus changes the account status of userID on behalf of actor. Tenant admins
// are confined to their own tenant and can never touch a super admin. Leaving the active
// state revokes every session of the target.
func (s *AuthService) UpdateUserStatus(ctx context.Context, actor auth.Identity, userID, status string) (models.User, error) {
	next := models.Status(status)
	if !next.Valid() {
		return models.User{}, apperr.Validation(apperr.CodeInvalidStatus, "Invalid status")
	}
	if actor.UserID == userID {
		return models.User{}, apperr.Forbidden(apperr.CodePermissionDenied, "You cannot change your own status")
	}
	target, err := s.loadUser(ctx, userID, apperr.NotFound(apperr.CodeUserNotFound, "User not found"))
	if err != nil {
		return models.User{}, err
	}
	if err := checkTenantReach(actor, target); err != nil {
		return models.User{}, err
	}

	target.Status = next
	saved, err := s.save(ctx, target)
	if err != nil {
		return models.User{}, err
	}
	if !saved.Active() {
		if _, err := s.revokeAll(ctx, saved.ID); err != nil {
			return models.User{}, err
		}
	}
	s.log.Infow("user status changed", "userId", saved.ID, "status", saved.Status, "actorId", actor.UserID)
	return saved.Sanitized(), nil
}

// RevokeAllSessions deletes every refresh-token record of userID and returns how many
// were removed.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	n, err := s.revokeAll(ctx, userID)
	s.metrics.AuthEvent("revoke_sessions", err)
	if err != nil {
		return 0, err
	}
	s.log.Infow("sessions revoked", "userId", userID, "count", n)
	return n, nil
}

// RevokeSessionsFor revokes the sessions of userID on behalf of actor. Anyone may revoke
// their own sessions; admins only reach users in their own tenant.
func (s *AuthService) RevokeSessionsFor(ctx context.Context, actor auth.Identity, userID string) (int, error) {
	if actor.UserID != userID {
		target, err := s.loadUser(ctx, userID, apperr.NotFound(apperr.CodeUserNotFound, "User not found"))
		if err != nil {
			return 0, err
		}
		if err := checkTenantReach(actor, target); err != nil {
			return 0, err
		}
	}
	return s.RevokeAllSessions(ctx, userID)
}

// checkTenantReach keeps everyone but super admins inside their own tenant and away from
// super admin accounts.
func checkTenantReach(actor auth.Identity, target models.User) error {
	if actor.Role == models.RoleSuperAdmin {
		return nil
	}
	if target.Role == models.RoleSuperAdmin || target.TenantID != actor.TenantID {
		return apperr.Forbidden(apperr.CodeCrossTenant, "User belongs to another tenant")
	}
	return nil
}

// EnsureSuperAdmin creates a verified, tenant-less super admin unless one with the same
// email already exists. It is the only way such accounts come into being.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, email, password, firstName, lastName string) (models.User, bool, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return models.User{}, false, apperr.Validation(apperr.CodeValidation, "Invalid email address")
	}
	if err := checkPassword(password); err != nil {
		return models.User{}, false, err
	}
	existing, err := s.store.FindUserByEmail(ctx, email, "")
	if err == nil {
		return existing.Sanitized(), false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, false, internal("failed to look up user", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, false, internal("failed to hash password", err)
	}
	created, err := s.store.CreateUser(ctx, models.User{
		Email:         email,
		FirstName:     firstName,
		LastName:      lastName,
		Role:          models.RoleSuperAdmin,
		Status:        models.StatusActive,
		EmailVerified: true,
		PasswordHash:  hash,
	})
	if err != nil {
		return models.User{}, false, internal("failed to create super admin", err)
	}
	s.log.Infow("super admin created", "userId", created.ID)
	return created.Sanitized(), true, nil
}
