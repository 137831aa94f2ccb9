package interceptors

import (
	"context"

	"user-session-service/internal/identity/domain"
	"user-session-service/internal/security"
)

type contextKey struct{ name string }

var (
	claimsKey = contextKey{"claims"}
	roleKey   = contextKey{"role"}
)

// WithClaims returns a context carrying the verified access-token claims.
func WithClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the access-token claims from context and true if set; otherwise nil, false.
func GetClaims(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*security.Claims)
	return c, ok && c != nil
}

// GetIdentityID returns the authenticated identity id from context and true if set; otherwise "", false.
func GetIdentityID(ctx context.Context) (string, bool) {
	c, ok := GetClaims(ctx)
	if !ok || c.IdentityID == "" {
		return "", false
	}
	return c.IdentityID, true
}

// WithRole returns a context carrying the caller's resolved role.
func WithRole(ctx context.Context, role domain.Role) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// GetRole returns the caller's role from context and true if resolved.
func GetRole(ctx context.Context) (domain.Role, bool) {
	r, ok := ctx.Value(roleKey).(domain.Role)
	return r, ok
}
