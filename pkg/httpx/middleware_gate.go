package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
)

// DefaultPublicPaths are the path prefixes that bypass the gate.
var DefaultPublicPaths = []string{
	"/auth/",
	"/swagger/",
	"/api-docs",
	"/livez",
	"/readyz",
	"/metrics",
}

// AccessValidator resolves an access token to a principal identifier.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (string, error)
}

// AuthErrorClassifier is implemented by validators that can tell a rejected
// credential apart from an internal failure such as an unreachable
// revocation store.
type AuthErrorClassifier interface {
	IsAuthError(err error) bool
}

// GateMiddleware authenticates requests carrying a bearer token.
//
// Requests to a public path prefix, and CORS preflights, pass straight
// through. A request without a bearer credential continues anonymously and
// downstream authorization decides whether that is acceptable. A bearer
// credential that fails validation ends the request with 401; the client
// sees a uniform error while the specific reason is logged. A valid token
// attaches its principal to the request context.
//
// When v implements AuthErrorClassifier, errors it does not classify as auth
// errors are answered with 500 instead.
func GateMiddleware(v AccessValidator, publicPaths []string) Middleware {
	public := append([]string(nil), publicPaths...)
	classifier, _ := v.(AuthErrorClassifier)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublicPath(public, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			principal, err := v.ValidateAccess(ctx, token)
			if err != nil {
				log := slogx.FromContext(ctx)
				if classifier != nil && !classifier.IsAuthError(err) {
					log.Error("access token validation failed", slog.Any("err", err))
					WriteError(w, http.StatusInternalServerError, ErrServerError)
					return
				}
				log.Warn("bearer token rejected", slog.Any("reason", err))
				writeBearerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(ctx, principal)))
		})
	}
}

// BearerToken extracts the credential from an "Authorization: Bearer"
// header. It reports false when the header is absent or uses another scheme.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func isPublicPath(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// writeBearerError sends the RFC 6750 invalid_token response. The body never
// says why the token was refused.
func writeBearerError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteError(w, http.StatusUnauthorized, ErrInvalidToken)
}
