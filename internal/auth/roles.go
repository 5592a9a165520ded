package auth

import "strings"

// Role is the closed set of platform roles. Capability checks go through
// predicates on Role instead of string comparisons at call sites.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleTutor:
		return RoleTutor, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// CanModerate reports whether the role acts as support staff: staff replies
// move tickets to "in_progress" and may close them.
func (r Role) CanModerate() bool {
	return r == RoleAdmin || r == RoleTutor
}

// IsAdmin gates destructive operations: deleting tickets and managing the
// shared macro library.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
