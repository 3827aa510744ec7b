package dto

import "github.com/hongminglow/tripdesk/internal/models"

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	TenantID  string `json:"tenantId"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId,omitempty"`
}

type LoginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int64       `json:"expiresIn"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email    string `json:"email"`
	TenantID string `json:"tenantId"`
}

type ResendVerificationRequest struct {
	Email    string `json:"email"`
	TenantID string `json:"tenantId"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// MessageResponse carries the generic acknowledgement used by enumeration-safe endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

type PermissionsResponse struct {
	Role        models.Role `json:"role"`
	Level       int         `json:"level"`
	Permissions []string    `json:"permissions"`
}

type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
}

type RevokeSessionsResponse struct {
	Revoked int `json:"revoked"`
}
