package auth

import "context"

// Identity is the resolved caller, constructed once by the middleware and
// threaded through handlers via the context.
type Identity struct {
	UserID string
}

// ctxKey is unexported so no other package can collide with or forge the
// identity entry.
type ctxKey struct{}

// WithIdentity returns a context carrying the resolved caller.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext extracts the caller set by the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
