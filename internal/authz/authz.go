package authz

import (
	"strings"

	"github.com/hongminglow/tripdesk/internal/models"
)

// Wildcard grants every permission.
const Wildcard = "*"

var hierarchy = map[models.Role]int{
	models.RoleSuperAdmin:  6,
	models.RoleTenantAdmin: 5,
	models.RoleOperator:    4,
	models.RoleAgent:       3,
	models.RoleSupplier:    2,
	models.RoleCustomer:    1,
}

// Permission patterns are "resource:action" or "resource:*".
var matrix = map[models.Role][]string{
	models.RoleSuperAdmin: {Wildcard},
	models.RoleTenantAdmin: {
		"tenants:read", "tenants:update",
		"users:*", "agents:*", "customers:*", "suppliers:*",
		"bookings:*", "quotes:*", "itineraries:*", "packages:*", "rate-lists:*",
		"email-templates:*", "reports:*", "settings:*", "profile:*",
	},
	models.RoleOperator: {
		"users:read",
		"customers:*", "bookings:*", "quotes:*", "itineraries:*", "packages:*", "rate-lists:*",
		"suppliers:read", "suppliers:create", "suppliers:update",
		"email-templates:read", "reports:read", "profile:*",
	},
	models.RoleAgent: {
		"customers:create", "customers:read", "customers:update",
		"bookings:create", "bookings:read", "bookings:update",
		"quotes:create", "quotes:read", "quotes:update",
		"itineraries:read", "packages:read", "rate-lists:read", "suppliers:read",
		"profile:*",
	},
	models.RoleSupplier: {
		"rate-lists:create", "rate-lists:read", "rate-lists:update",
		"bookings:read", "profile:*",
	},
	models.RoleCustomer: {
		"bookings:read", "quotes:read", "itineraries:read", "profile:*",
	},
	models.RoleAgentCustomer: {
		"bookings:create", "bookings:read", "quotes:read", "itineraries:read", "profile:*",
	},
}

// Level returns the hierarchy level of role; roles outside the hierarchy are 0.
func Level(role models.Role) int {
	return hierarchy[role]
}

// HasRoleLevel reports whether role is at least as privileged as required. A required
// role outside the hierarchy admits nobody.
func HasRoleLevel(role, required models.Role) bool {
	level, ok := hierarchy[required]
	return ok && Level(role) >= level
}

// HasPermission reports whether role is granted perm, directly or through a wildcard.
func HasPermission(role models.Role, perm string) bool {
	resource, _, ok := strings.Cut(perm, ":")
	if !ok {
		resource = perm
	}
	for _, granted := range matrix[role] {
		if granted == Wildcard || granted == perm || granted == resource+":*" {
			return true
		}
	}
	return false
}

// PermissionsFor returns a copy of role's permission patterns.
func PermissionsFor(role models.Role) []string {
	perms := matrix[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// BypassesOwnership reports whether role may act on resources it does not own.
func BypassesOwnership(role models.Role) bool {
	return role == models.RoleSuperAdmin || role == models.RoleTenantAdmin
}

// IsOwner reports whether a caller may act on a resource owned by ownerID.
func IsOwner(role models.Role, callerID, ownerID string) bool {
	if BypassesOwnership(role) {
		return true
	}
	return callerID != "" && callerID == ownerID
}
