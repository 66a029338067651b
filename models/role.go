package models

import "fmt"

// Role is the closed set of account roles. Any authenticated account that is
// not an admin is a reader.
type Role string

const (
	RoleReader Role = "reader"
	RoleAdmin  Role = "admin"
)

// ParseRole accepts only the known role names.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleReader:
		return RoleReader, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleReader:
		return false
	default:
		return false
	}
}
