package models

import (
	"strings"

	id "civicportal/pkg/domain"
)

// Role is the portal role carried by a session.
type Role string

const (
	RoleNone    Role = "none"
	RoleCitizen Role = "citizen"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// ParseRole accepts the three session roles. "none" and anything else is
// rejected so that an unknown claim never becomes an identity.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCitizen, RoleStaff, RoleAdmin:
		return r, true
	default:
		return RoleNone, false
	}
}

// Principal is the acting identity for one request. The zero value is not
// meaningful; use Unauthenticated.
type Principal struct {
	UserID   id.UserID
	TenantID id.TenantID
	Role     Role
}

// Unauthenticated is the principal for requests without a valid session.
func Unauthenticated() Principal {
	return Principal{Role: RoleNone}
}

// IsAuthenticated requires a known role and both identifiers.
func (p Principal) IsAuthenticated() bool {
	if p.Role == RoleNone || p.Role == "" {
		return false
	}
	return !p.UserID.IsNil() && !p.TenantID.IsNil()
}

// RawSession is what the session provider hands back before normalization.
type RawSession struct {
	UserID   string
	TenantID string
	Role     string
}
