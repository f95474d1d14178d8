package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the domain model for an account holder.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Enabled      bool
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleNames returns the authority names granted to the user.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Authority)
	}
	return names
}
