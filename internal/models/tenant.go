package models

import "time"

// Tenant is an agency account; users other than super admins belong to exactly one.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Active reports whether the tenant accepts registrations and tenant-scoped logins.
func (t Tenant) Active() bool {
	return t.Status == StatusActive
}
