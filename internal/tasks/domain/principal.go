package domain

import "time"

// RoleUser is granted to every self-registered principal.
const RoleUser = "user"

// Principal is an authenticated identity known to the user directory. The
// token layer only ever carries its ID (the token subject).
type Principal struct {
	ID           string
	Username     string
	Email        string
	Roles        []string
	PasswordHash string // argon2id encoded
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether role is in the principal's capability set.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
