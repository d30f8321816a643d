package auth

import "strings"

// Role is the storefront role carried in the token's role claim.
type Role string

const (
	// RoleNone is the zero value used when a session has no role
	RoleNone Role = ""
	// RoleClient is a buyer (catalogue, profile)
	RoleClient Role = "CLIENT"
	// RoleSeller is a seller (dashboard, product and media CRUD)
	RoleSeller Role = "SELLER"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleSeller:
		return true
	default:
		return false
	}
}

// CanManageCatalogue reports whether the role may use the seller dashboard
func (r Role) CanManageCatalogue() bool {
	return r == RoleSeller
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{RoleClient, RoleSeller}
}

// ParseRole parses a role claim case-insensitively. Unknown values map to
// RoleNone.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(roleStr)))
	if !role.IsValid() {
		return RoleNone, false
	}
	return role, true
}
