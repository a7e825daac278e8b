package httpx

import "context"

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

// ContextWithPrincipal returns a copy of ctx carrying the authenticated
// principal identifier.
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, principal)
}

// PrincipalFromContext returns the principal attached by the gate. The second
// result is false for anonymous requests.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(string)
	return p, ok && p != ""
}
