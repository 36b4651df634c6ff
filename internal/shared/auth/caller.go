// Package auth carries the authenticated caller through every use case.
package auth

import (
	"errors"
	"strings"
)

// Role distinguishes the two sides of the marketplace.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleWalker Role = "walker"
)

var (
	// ErrNotAuthenticated is returned when an operation runs without a caller identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when the caller's role or relationship to a resource does not allow the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnknownRole is returned when parsing an unsupported role.
	ErrUnknownRole = errors.New("unknown role")
)

// ParseRole validates a role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleWalker:
		return RoleWalker, nil
	default:
		return "", ErrUnknownRole
	}
}

// Caller identifies who is invoking an operation.
type Caller struct {
	UserID string
	Role   Role
}

// Authenticated reports whether the caller carries an identity.
func (c Caller) Authenticated() bool {
	return strings.TrimSpace(c.UserID) != ""
}

// Require checks the caller is authenticated and, when roles are given, holds one of them.
func (c Caller) Require(roles ...Role) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if c.Role == r {
			return nil
		}
	}
	return ErrForbidden
}
