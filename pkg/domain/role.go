package domain

import (
	"strings"

	dErrors "miriesgo/pkg/domain-errors"
)

// Role is the coarse authorization level carried in access tokens.
type Role string

const (
	RoleAnalyst Role = "analyst"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole accepts the three known roles, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAnalyst, RoleManager, RoleAdmin:
		return r, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "role must be one of admin, manager, analyst")
	}
}

func (r Role) String() string { return string(r) }

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}
