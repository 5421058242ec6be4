// Package auth - roles.go defines the closed set of principal roles and account statuses.
package auth

import "fmt"

// Role is the coarse privilege level of a principal.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleShopOwner  Role = "SHOP_OWNER"
	RoleShopWorker Role = "SHOP_WORKER"
)

// AllRoles returns every valid role
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleShopOwner, RoleShopWorker}
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleShopOwner, RoleShopWorker:
		return true
	}
	return false
}

// ParseRole converts a stored string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %s", s)
	}
	return r, nil
}

// Status is the account state of a principal. Only ACTIVE principals may act.
type Status string

const (
	StatusActive              Status = "ACTIVE"
	StatusInactive            Status = "INACTIVE"
	StatusSuspended           Status = "SUSPENDED"
	StatusPendingVerification Status = "PENDING_VERIFICATION"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusPendingVerification:
		return true
	}
	return false
}

// ParseStatus converts a stored string into a Status
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %s", s)
	}
	return st, nil
}
