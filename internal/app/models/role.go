package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the privilege tier held by a user. RoleNone means the user has no
// role row and is a valid state, not an error.
type Role string

const (
	RoleNone       Role = ""
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleEditor     Role = "editor"
)

// AssignableRoles lists the roles a super admin can grant, highest first.
var AssignableRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleEditor}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleEditor:
		return true
	}
	return false
}

// HasAdminAccess reports whether the role may manage content.
func (r Role) HasAdminAccess() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Label is the human readable form used in badges and greetings.
func (r Role) Label() string {
	if r == RoleNone {
		return "none"
	}
	return strings.ReplaceAll(string(r), "_", " ")
}

func (r Role) String() string {
	return string(r)
}

// ParseRole validates s against the role enum. The empty string is rejected:
// callers wanting "no role" delete the row instead.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return RoleNone, fmt.Errorf("unknown role %q: %w", s, ErrValidation)
	}
	return r, nil
}

// RoleAssignment is a row of user_roles.
type RoleAssignment struct {
	ID        string
	UserID    string
	Role      Role
	CreatedAt time.Time
}

// UserWithRole is a profile merged with its role row, as listed on the users panel.
type UserWithRole struct {
	UserID      string
	DisplayName string
	CreatedAt   time.Time
	RoleID      string
	Role        Role
}

func (u UserWithRole) ShortID() string {
	if len(u.UserID) > 8 {
		return u.UserID[:8] + "..."
	}
	return u.UserID
}
