package domain

import "github.com/google/uuid"

// Well-known authorities. Role names carry the conventional prefix and are
// compared by exact string equality; there is no hierarchy.
const (
	RolePrefix = "ROLE_"

	RoleUser  = RolePrefix + "USER"
	RoleAdmin = RolePrefix + "ADMIN"
)

// Role is a named authority that can be granted to users.
type Role struct {
	ID        uuid.UUID
	Authority string
}
