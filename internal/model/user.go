package model

import (
	"fmt"
	"time"
)

// User represents an account that can sign in.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleOwner   = "owner"
	RoleFriend  = "friend"
	RoleVisitor = "visitor"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleOwner || role == RoleFriend || role == RoleVisitor
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleOwner:   3,
		RoleFriend:  2,
		RoleVisitor: 1,
	}
	have, ok := levels[role]
	if !ok {
		return false
	}
	need, ok := levels[minimum]
	return ok && have >= need
}

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 8

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Viewer identifies who is asking. An empty ID is an anonymous visitor.
type Viewer struct {
	ID   string
	Role string
}

// IsOwner reports whether the viewer acts with the owner role.
func (v Viewer) IsOwner() bool {
	return v.Role == RoleOwner
}

// Anonymous reports whether the viewer has no identity.
func (v Viewer) Anonymous() bool {
	return v.ID == ""
}
