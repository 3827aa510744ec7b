package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/authz"
	"github.com/hongminglow/tripdesk/internal/http/respond"
	"github.com/hongminglow/tripdesk/internal/models"
)

var errAuthRequired = apperr.Unauthorized(apperr.CodeAuthRequired, "Authentication required")

// OwnerResolver yields the id of the user owning the resource a request targets.
type OwnerResolver func(r *http.Request) (string, error)

// OwnerID resolves to a fixed owner.
func OwnerID(id string) OwnerResolver {
	return func(*http.Request) (string, error) { return id, nil }
}

// OwnerFromPath resolves the owner from a chi URL parameter.
func OwnerFromPath(param string) OwnerResolver {
	return func(r *http.Request) (string, error) {
		id := chi.URLParam(r, param)
		if id == "" {
			return "", apperr.Validation(apperr.CodeValidation, "Missing "+param+" parameter")
		}
		return id, nil
	}
}

// guard runs check against the authenticated identity and rejects the request on error.
func guard(check func(r *http.Request, id auth.Identity) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				respond.Error(w, LoggerFrom(r.Context()), errAuthRequired)
				return
			}
			if err := check(r, id); err != nil {
				respond.Error(w, LoggerFrom(r.Context()), err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission admits callers whose role is granted perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return guard(func(_ *http.Request, id auth.Identity) error {
		if !authz.HasPermission(id.Role, perm) {
			return apperr.Forbidden(apperr.CodePermissionDenied, "Permission denied: "+perm)
		}
		return nil
	})
}

// RequireRole admits callers holding one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return guard(func(_ *http.Request, id auth.Identity) error {
		if !slices.Contains(roles, id.Role) {
			return apperr.Forbidden(apperr.CodeRoleRequired, "Your role is not allowed to perform this action")
		}
		return nil
	})
}

// RequireRoleLevel admits callers at least as privileged as required.
func RequireRoleLevel(required models.Role) func(http.Handler) http.Handler {
	return guard(func(_ *http.Request, id auth.Identity) error {
		if !authz.HasRoleLevel(id.Role, required) {
			return apperr.Forbidden(apperr.CodeInsufficientRoleLevel, "Insufficient role level")
		}
		return nil
	})
}

// RequireOwnership admits the resource owner and roles that bypass ownership.
func RequireOwnership(owner OwnerResolver) func(http.Handler) http.Handler {
	return guard(func(r *http.Request, id auth.Identity) error {
		ownerID, err := owner(r)
		if err != nil {
			return err
		}
		if !authz.IsOwner(id.Role, id.UserID, ownerID) {
			return apperr.Forbidden(apperr.CodeOwnershipRequired, "You can only access your own resources")
		}
		return nil
	})
}

// SuperAdminOnly admits super admins.
func SuperAdminOnly() func(http.Handler) http.Handler {
	return RequireRole(models.RoleSuperAdmin)
}

// TenantAdminOnly admits tenant admins and super admins.
func TenantAdminOnly() func(http.Handler) http.Handler {
	return RequireRole(models.RoleSuperAdmin, models.RoleTenantAdmin)
}
