package auth

import "context"

type principalKey struct{}

// WithPrincipal attaches the authenticated identity to ctx.
func WithPrincipal(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

// PrincipalFromContext returns the identity published by the gate.
// ok is false for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(principalKey{}).(User)
	return user, ok
}
