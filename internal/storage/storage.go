package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/tripdesk/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures the user persistence operations the auth core needs.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	SaveUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id string) (models.User, error)
	// FindUserByEmail looks the user up within tenantID; an empty tenantID matches only
	// tenant-less accounts.
	FindUserByEmail(ctx context.Context, email, tenantID string) (models.User, error)
	FindUserByVerificationToken(ctx context.Context, token string) (models.User, error)
	// FindUserByResetToken only matches tokens whose expiry is after now.
	FindUserByResetToken(ctx context.Context, token string, now time.Time) (models.User, error)
}

// TenantStore exposes read access to tenants.
type TenantStore interface {
	FindTenantByID(ctx context.Context, id string) (models.Tenant, error)
}

// IdentityStore is the full identity backend consulted by the auth core.
type IdentityStore interface {
	UserStore
	TenantStore
}
