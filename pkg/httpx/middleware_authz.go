package httpx

import "net/http"

// RequirePrincipal rejects anonymous requests with 401. It runs after the
// gate, which is what attaches the principal.
func RequirePrincipal() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="tasktrack"`)
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
