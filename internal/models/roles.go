package models

import "strings"

// Role is one of the fixed account roles.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleTenantAdmin   Role = "tenant_admin"
	RoleOperator      Role = "operator"
	RoleAgent         Role = "agent"
	RoleSupplier      Role = "supplier"
	RoleCustomer      Role = "customer"
	RoleAgentCustomer Role = "agent_customer"
)

// Roles lists every known role, most privileged first.
var Roles = []Role{
	RoleSuperAdmin,
	RoleTenantAdmin,
	RoleOperator,
	RoleAgent,
	RoleSupplier,
	RoleCustomer,
	RoleAgentCustomer,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole accepts both snake_case and kebab-case spellings.
func ParseRole(value string) (Role, bool) {
	r := Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_"))
	return r, r.Valid()
}
