// Package authorization holds the caller roles understood by the billing API.
package authorization

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
	// RoleService is used by the build orchestrator when it spends points
	// on behalf of a user.
	RoleService UserRole = "service"
)

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleService:
		return true
	}
	return false
}

// ParseUserRole falls back to RoleUser for unknown input.
func ParseUserRole(s string) UserRole {
	role := UserRole(s)
	if role.IsValid() {
		return role
	}
	return RoleUser
}
