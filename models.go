package session

import "time"

// Role is the application-side capability of a profile
type Role = string

const (
	// RoleMember is a regular club member
	RoleMember Role = "member"
	// RoleClubManager manages one or more clubs
	RoleClubManager Role = "clubManager"
	// RoleAdmin administers the whole application
	RoleAdmin Role = "admin"
)

// Profile is the application record the backend maintains per identity. It is
// mirrored read-only into the session; the backend owns it.
type Profile struct {
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	Role      Role       `json:"role"`
	AvatarURL string     `json:"photoURL,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleMember, RoleClubManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}
