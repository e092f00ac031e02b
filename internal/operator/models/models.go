package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "vialidad/pkg/domain-errors"
)

// Role scopes what an operator account may do.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
)

// ParseRole normalizes and validates a role value.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleOperator:
		return RoleOperator, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid role: "+value)
}

// Operator is a municipal staff account that issues and renews licenses.
// Passwords are stored only as bcrypt hashes.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether the operator carries the given role.
func (o *Operator) HasRole(role Role) bool {
	for _, r := range o.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleStrings returns the roles as plain strings for token claims.
func (o *Operator) RoleStrings() []string {
	out := make([]string, len(o.Roles))
	for i, r := range o.Roles {
		out[i] = string(r)
	}
	return out
}
