package service

import (
	"context"
	"errors"
	"strings"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/notify"
	"github.com/hongminglow/tripdesk/internal/storage"
)

// VerifyEmail consumes a verification token. Tokens are single use.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	user, err := s.verifyEmail(ctx, token)
	s.metrics.AuthEvent("verify_email", err)
	return user, err
}

func (s *AuthService) verifyEmail(ctx context.Context, token string) (models.User, error) {
	errInvalid := apperr.NotFound(apperr.CodeInvalidVerificationToken, "Invalid verification token")
	token = strings.TrimSpace(token)
	if token == "" {
		return models.User{}, errInvalid
	}
	user, err := s.store.FindUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, errInvalid
		}
		return models.User{}, internal("failed to look up verification token", err)
	}

	user.EmailVerified = true
	user.VerificationToken = ""
	saved, err := s.save(ctx, user)
	if err != nil {
		return models.User{}, err
	}
	s.log.Infow("email verified", "userId", saved.ID)
	return saved.Sanitized(), nil
}

// RequestPasswordReset issues a reset token when the account exists. The returned
// message is the same either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, tenantID string) (string, error) {
	msg, err := s.requestPasswordReset(ctx, email, tenantID)
	s.metrics.AuthEvent("forgot_password", err)
	return msg, err
}

func (s *AuthService) requestPasswordReset(ctx context.Context, email, tenantID string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", apperr.Validation(apperr.CodeValidation, "Email is required")
	}
	user, err := s.store.FindUserByEmail(ctx, email, strings.TrimSpace(tenantID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warnw("password reset requested for unknown account", "tenantId", tenantID)
			return ResetRequestedMessage, nil
		}
		return "", internal("failed to look up user", err)
	}

	token, err := auth.NewOpaqueToken()
	if err != nil {
		return "", internal("failed to generate reset token", err)
	}
	expiry := s.now().Add(s.opts.ResetTokenTTL)
	user.ResetToken = token
	user.ResetTokenExpiry = &expiry
	if _, err := s.save(ctx, user); err != nil {
		return "", err
	}

	data := notify.Context{FirstName: user.FirstName, TenantID: user.TenantID}
	if err := s.notifier.SendPasswordResetEmail(ctx, user.Email, token, data); err != nil {
		if s.opts.StrictResetEmail {
			return "", apperr.Internal(apperr.CodeEmailSendFailed, "Failed to send password reset email", err)
		}
		s.log.Warnw("password reset email failed", "userId", user.ID, "err", err)
	}
	return ResetRequestedMessage, nil
}

// ResetPassword sets a new password from a live reset token and revokes every session.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	err := s.resetPassword(ctx, token, newPassword)
	s.metrics.AuthEvent("reset_password", err)
	return err
}

func (s *AuthService) resetPassword(ctx context.Context, token, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	user, err := s.store.FindUserByResetToken(ctx, strings.TrimSpace(token), s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(apperr.CodeInvalidResetToken, "Invalid or expired reset token")
		}
		return internal("failed to look up reset token", err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return internal("failed to hash password", err)
	}
	user.PasswordHash = hash
	user.ResetToken = ""
	user.ResetTokenExpiry = nil
	if _, err := s.save(ctx, user); err != nil {
		return err
	}

	revoked, err := s.revokeAll(ctx, user.ID)
	if err != nil {
		return err
	}
	s.log.Infow("password reset", "userId", user.ID, "revokedSessions", revoked)
	return nil
}

// ChangePassword replaces the password of an authenticated user after re-checking the
// current one, then revokes every session.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	err := s.changePassword(ctx, userID, currentPassword, newPassword)
	s.metrics.AuthEvent("change_password", err)
	return err
}

func (s *AuthService) changePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return apperr.Validation(apperr.CodeValidation, "Current and new password are required")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	user, err := s.loadUser(ctx, userID, apperr.NotFound(apperr.CodeUserNotFound, "User not found"))
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(user.PasswordHash, currentPassword) {
		return apperr.Unauthorized(apperr.CodeInvalidCredentials, "Current password is incorrect")
	}
	if currentPassword == newPassword {
		return apperr.Validation(apperr.CodeSamePassword, "New password must differ from the current password")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return internal("failed to hash password", err)
	}
	user.PasswordHash = hash
	if _, err := s.save(ctx, user); err != nil {
		return err
	}
	revoked, err := s.revokeAll(ctx, user.ID)
	if err != nil {
		return err
	}
	s.log.Infow("password changed", "userId", user.ID, "revokedSessions", revoked)
	return nil
}

// ResendVerification issues a fresh verification token for an unverified account.
func (s *AuthService) ResendVerification(ctx context.Context, email, tenantID string) (string, error) {
	msg, err := s.resendVerification(ctx, email, tenantID)
	s.metrics.AuthEvent("resend_verification", err)
	return msg, err
}

func (s *AuthService) resendVerification(ctx context.Context, email, tenantID string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", apperr.Validation(apperr.CodeValidation, "Email is required")
	}
	user, err := s.store.FindUserByEmail(ctx, email, strings.TrimSpace(tenantID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return VerificationResentMessage, nil
		}
		return "", internal("failed to look up user", err)
	}
	if user.EmailVerified {
		return "", apperr.Validation(apperr.CodeAlreadyVerified, "Email is already verified")
	}

	token, err := auth.NewOpaqueToken()
	if err != nil {
		return "", internal("failed to generate verification token", err)
	}
	user.VerificationToken = token
	if _, err := s.save(ctx, user); err != nil {
		return "", err
	}
	data := notify.Context{FirstName: user.FirstName, TenantID: user.TenantID}
	if err := s.notifier.SendVerificationEmail(ctx, user.Email, token, data); err != nil {
		s.log.Warnw("verification email failed", "userId", user.ID, "err", err)
	}
	return VerificationResentMessage, nil
}
