package auth

import "context"

type contextKey string

const adminContextKey contextKey = "admin"

// Admin identifies an authenticated operator.
type Admin struct {
	Name string
}

// ContextWithAdmin returns a new context carrying the admin principal.
func ContextWithAdmin(ctx context.Context, a *Admin) context.Context {
	if a == nil {
		return ctx
	}
	return context.WithValue(ctx, adminContextKey, a)
}

// AdminFromContext returns the admin principal or nil.
func AdminFromContext(ctx context.Context) *Admin {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(adminContextKey).(*Admin)
	return a
}
