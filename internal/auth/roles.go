package auth

import "strings"

// Role is the closed set of operator roles. Permission rules are keyed by
// role, so new roles require a code change rather than a data change.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleValet    Role = "valet"
	RoleEmployee Role = "employee"
	RoleClient   Role = "client"
)

var allRoles = []Role{RoleAdmin, RoleManager, RoleValet, RoleEmployee, RoleClient}

// ParseRole normalizes and validates a role label.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	return role, role.Valid()
}

func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }
