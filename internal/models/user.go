package models

import "time"

// Status is the account status of a user or tenant.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusSuspended
}

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Role              Role       `json:"role"`
	TenantID          string     `json:"tenantId,omitempty"`
	Status            Status     `json:"status"`
	EmailVerified     bool       `json:"emailVerified"`
	PasswordHash      string     `json:"-"`
	VerificationToken string     `json:"-"`
	ResetToken        string     `json:"-"`
	ResetTokenExpiry  *time.Time `json:"-"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Active reports whether the user may authenticate.
func (u User) Active() bool {
	return u.Status == StatusActive
}

// Sanitized returns a copy with the credential and single-use tokens removed.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.VerificationToken = ""
	u.ResetToken = ""
	u.ResetTokenExpiry = nil
	return u
}
