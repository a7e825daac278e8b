package tokenx

import (
	"time"

	"github.com/aussiebroadwan/tasktrack/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes for a session pair. Services override them through
// configuration.
const (
	// DefaultAccessTokenTTL keeps access tokens short lived; they are only
	// revocable through the revocation registry.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is how long a client can stay logged in without
	// presenting a password again.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Type distinguishes access tokens from refresh tokens. It travels in the
// "typ" claim so a refresh token can never be replayed as an access token.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Valid reports whether t is one of the known token types.
func (t Type) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

// Claims is the claim set carried by every credential. The registered
// claims supply sub, iat, exp, jti and iss.
type Claims struct {
	jwt.RegisteredClaims

	Type Type `json:"typ"`
}

// NewClaims builds a claim set with a fresh jti. Timestamps are truncated to
// whole seconds, the resolution of the wire format.
func NewClaims(subject string, typ Type, ttl time.Duration, issuer string, now time.Time) Claims {
	issued := time.Unix(now.Unix(), 0)
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
			ID:        idx.NewAt(now).String(),
		},
		Type: typ,
	}
}

// ExpiresAtTime returns the exp claim, or the zero time when it is unset.
func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// wellFormed checks the claims every credential must carry.
func (c Claims) wellFormed() bool {
	return c.Subject != "" &&
		c.ID != "" &&
		c.ExpiresAt != nil &&
		c.IssuedAt != nil &&
		c.Type.Valid()
}
