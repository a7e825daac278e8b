// Package tokenx encodes and decodes the signed credentials handed to
// clients. A credential is an HS256 JWT:
//
//	base64url(header) . base64url(claims) . base64url(HMAC-SHA256)
//
// The Codec holds nothing but the secret and a clock, so a single value can be
// shared by every request goroutine.
package tokenx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret = errors.New("tokenx: secret key must not be empty")

	ErrMalformed        = errors.New("tokenx: malformed token")
	ErrSignatureInvalid = errors.New("tokenx: invalid signature")
	ErrExpired          = errors.New("tokenx: token expired")

	// ErrEncoding means a claim set could not be serialised or signed. It
	// points at a programming or configuration defect, never at a client.
	ErrEncoding = errors.New("tokenx: encoding failed")
)

// Codec signs and verifies credentials with a process-wide secret.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a Codec signing with secret. The secret is copied so later
// changes to the caller's slice cannot affect signing.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
		// Registered claims are validated by decode itself so expiry uses
		// the codec clock and reports ErrExpired only for authentic tokens.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithStrictDecoding(),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode serialises and signs claims.
func (c *Codec) Encode(claims Claims) (string, error) {
	if !claims.wellFormed() {
		return "", fmt.Errorf("%w: incomplete claim set", ErrEncoding)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Decode verifies the signature of token and returns its claims. A
// structurally sound token whose exp is not after the current time yields
// ErrExpired whether or not its signature verifies; it is dead either way.
func (c *Codec) Decode(token string) (Claims, error) {
	claims, err := c.parse(token)
	if err != nil && !errors.Is(err, ErrSignatureInvalid) {
		return Claims{}, err
	}

	if claims.wellFormed() && !c.now().Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrExpired
	}
	if err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// DecodeIgnoringExpiry verifies signature and structure only. Logout uses it
// so that revoking an already expired token is harmless.
func (c *Codec) DecodeIgnoringExpiry(token string) (Claims, error) {
	claims, err := c.parse(token)
	if err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// parse decodes and verifies token. On ErrSignatureInvalid the returned claims
// hold the unverified payload; callers must not trust them.
func (c *Codec) parse(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMalformed
	}

	var claims Claims
	_, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrSignatureInvalid) {
			return claims, err
		}
		return Claims{}, err
	}

	if !claims.wellFormed() {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

// classify folds the jwt library's error tree into the codec's taxonomy.
// Anything that is not a signature failure is treated as malformed input.
func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
