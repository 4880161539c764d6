package roles

import "fmt"

// Role represents a user's privilege level in the marketplace.
type Role string

const (
	RoleUser    Role = "USER"
	RoleWorker  Role = "WORKER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// rank orders the roles by privilege. A higher rank satisfies any
// requirement at or below it.
var rank = map[Role]int{
	RoleUser:    0,
	RoleWorker:  1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// Rank returns the privilege rank of r, or -1 for unknown roles so
// that they sort below every defined role.
func Rank(r Role) int {
	if v, ok := rank[r]; ok {
		return v
	}
	return -1
}

// Valid reports whether r is one of the defined roles.
func Valid(r Role) bool {
	_, ok := rank[r]
	return ok
}

// Parse converts a raw role string into a Role.
func Parse(s string) (Role, error) {
	r := Role(s)
	if !Valid(r) {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// HasRole reports whether userRole satisfies requiredRole. Unknown
// roles on either side fail closed.
func HasRole(userRole, requiredRole Role) bool {
	ur := Rank(userRole)
	rr := Rank(requiredRole)
	if ur < 0 || rr < 0 {
		return false
	}
	return ur >= rr
}

// HasAnyRole reports whether userRole satisfies at least one of the
// required roles. An empty requirement list denies.
func HasAnyRole(userRole Role, required ...Role) bool {
	for _, r := range required {
		if HasRole(userRole, r) {
			return true
		}
	}
	return false
}
