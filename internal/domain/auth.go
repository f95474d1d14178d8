package domain

import "github.com/google/uuid"

// TokenPair carries the two tokens handed out on successful authentication.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Principal is the identity resolved for the current request. It is an
// immutable snapshot; role changes take effect on the next lookup or token
// issuance, never retroactively.
type Principal struct {
	ID    uuid.UUID
	Roles []string
}

// HasRole reports whether the principal holds the exact authority name.
func (p *Principal) HasRole(authority string) bool {
	if p == nil {
		return false
	}
	for _, role := range p.Roles {
		if role == authority {
			return true
		}
	}
	return false
}
