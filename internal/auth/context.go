package auth

import "context"

// Principal is the per-request identity view built by the HTTP middleware
// from the freshly loaded account record, not from token claims. It is
// read-only and discarded at request end.
type Principal struct {
	User *User
}

// HasPermission consults the static policy with the principal's current role.
func (p Principal) HasPermission(resource string, action Action) bool {
	if p.User == nil {
		return false
	}
	return HasPermission(p.User.Role, resource, action)
}

// RequirePermission fails with the coded forbidden error on denial.
func (p Principal) RequirePermission(resource string, action Action) error {
	if p.User == nil {
		return ErrAuthRequired
	}
	return RequirePermission(p.User.Role, resource, action)
}

type principalContextKey struct{}
type tokenContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil || v.User == nil {
		return Principal{}, false
	}
	return *v, true
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return p.User.ID, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
