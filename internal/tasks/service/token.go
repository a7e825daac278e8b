package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/obs"
	"github.com/aussiebroadwan/tasktrack/pkg/revocation"
	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
	"github.com/aussiebroadwan/tasktrack/pkg/tokenx"
)

var (
	// ErrRevoked means the token id is in the revocation registry.
	ErrRevoked = errors.New("token_revoked")
	// ErrWrongTokenType means a refresh token was presented as an access token or the reverse.
	ErrWrongTokenType = errors.New("wrong_token_type")
)

// IsAuthError reports whether err is one of the token validation failures
// that a client can cause: malformed, bad signature, expired, revoked or the
// wrong token type. Anything else is an internal fault.
func IsAuthError(err error) bool {
	return errors.Is(err, tokenx.ErrMalformed) ||
		errors.Is(err, tokenx.ErrSignatureInvalid) ||
		errors.Is(err, tokenx.ErrExpired) ||
		errors.Is(err, ErrRevoked) ||
		errors.Is(err, ErrWrongTokenType)
}

// TokenService issues, validates, rotates and revokes session tokens. It
// keeps no per-session state besides the revocation registry.
type TokenService struct {
	Codec      *tokenx.Codec
	Registry   revocation.Registry
	Metrics    *obs.Metrics // optional
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now defaults to time.Now. It must agree with the codec clock.
	Now func() time.Time
}

// IsAuthError lets the request gate tell rejected tokens from internal faults.
func (s *TokenService) IsAuthError(err error) bool { return IsAuthError(err) }

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return tokenx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return tokenx.DefaultRefreshTokenTTL
}

// Issue mints a fresh access and refresh token for principal.
func (s *TokenService) Issue(ctx context.Context, principal string) (domain.TokenPair, error) {
	if principal == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: empty principal", tokenx.ErrEncoding)
	}

	now := s.now()
	access, err := s.Codec.Encode(tokenx.NewClaims(principal, tokenx.TypeAccess, s.accessTTL(), s.Issuer, now))
	if err != nil {
		slogx.FromContext(ctx).Error("failed to encode access token", slog.Any("err", err))
		return domain.TokenPair{}, err
	}
	refresh, err := s.Codec.Encode(tokenx.NewClaims(principal, tokenx.TypeRefresh, s.refreshTTL(), s.Issuer, now))
	if err != nil {
		slogx.FromContext(ctx).Error("failed to encode refresh token", slog.Any("err", err))
		return domain.TokenPair{}, err
	}

	if s.Metrics != nil {
		s.Metrics.TokensIssued.WithLabelValues(string(tokenx.TypeAccess)).Inc()
		s.Metrics.TokensIssued.WithLabelValues(string(tokenx.TypeRefresh)).Inc()
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL().Seconds()),
	}, nil
}

// ValidateAccess checks an access token and returns the principal it names.
func (s *TokenService) ValidateAccess(ctx context.Context, token string) (string, error) {
	claims, err := s.validate(ctx, token, tokenx.TypeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Refresh redeems a refresh token for a new pair. The consumed token is
// revoked until its own expiry, so each refresh token works exactly once;
// of two concurrent redemptions only one wins.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, string, error) {
	claims, err := s.validate(ctx, refreshToken, tokenx.TypeRefresh)
	if err != nil {
		return domain.TokenPair{}, "", err
	}

	won, err := s.Registry.RevokeIfAbsent(ctx, claims.ID, claims.ExpiresAtTime())
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	if !won {
		slogx.FromContext(ctx).Warn("refresh token redeemed twice",
			slog.String("jti", claims.ID),
			slog.String("sub", claims.Subject),
		)
		s.countValidation(tokenx.TypeRefresh, ErrRevoked)
		return domain.TokenPair{}, "", ErrRevoked
	}
	s.countRevocation("refresh")

	pair, err := s.Issue(ctx, claims.Subject)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	return pair, claims.Subject, nil
}

// RevokeAccess revokes an access token until its original expiry. Expiry is
// ignored on decode and an already expired token is accepted as a no-op, so
// logging out twice or late always succeeds.
func (s *TokenService) RevokeAccess(ctx context.Context, token string) error {
	claims, err := s.Codec.DecodeIgnoringExpiry(token)
	if err != nil {
		return err
	}
	if claims.Type != tokenx.TypeAccess {
		return ErrWrongTokenType
	}

	exp := claims.ExpiresAtTime()
	if !s.now().Before(exp) {
		return nil
	}

	if err := s.Registry.Revoke(ctx, claims.ID, exp); err != nil {
		return err
	}
	s.countRevocation("logout")
	return nil
}

func (s *TokenService) validate(ctx context.Context, token string, want tokenx.Type) (tokenx.Claims, error) {
	claims, err := s.Codec.Decode(token)
	if err != nil {
		s.countValidation(want, err)
		return tokenx.Claims{}, err
	}
	if claims.Type != want {
		s.countValidation(want, ErrWrongTokenType)
		return tokenx.Claims{}, ErrWrongTokenType
	}

	revoked, err := s.Registry.IsRevoked(ctx, claims.ID)
	if err != nil {
		return tokenx.Claims{}, err
	}
	if revoked {
		s.countValidation(want, ErrRevoked)
		return tokenx.Claims{}, ErrRevoked
	}

	s.countValidation(want, nil)
	return claims, nil
}

func (s *TokenService) countValidation(typ tokenx.Type, err error) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.TokenValidations.WithLabelValues(string(typ), outcome(err)).Inc()
}

func (s *TokenService) countRevocation(reason string) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.TokensRevoked.WithLabelValues(reason).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tokenx.ErrExpired):
		return "expired"
	case errors.Is(err, tokenx.ErrSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, tokenx.ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrWrongTokenType):
		return "wrong_type"
	default:
		return "error"
	}
}
