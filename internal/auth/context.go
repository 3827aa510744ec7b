package auth

import (
	"context"

	"github.com/hongminglow/tripdesk/internal/models"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID   string
	TenantID string
	Email    string
	Role     models.Role
	User     models.User
}

// NewIdentity builds an identity from a loaded user.
func NewIdentity(user models.User) Identity {
	user = user.Sanitized()
	return Identity{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		Role:     user.Role,
		User:     user,
	}
}

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the identity; ok is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}
