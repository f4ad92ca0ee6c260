package authproto

import (
	"context"

	"iamcore/internal/iam"
)

// Auth is the context object handed to business handlers once a request
// has cleared both authentication and authorization (spec §4.5).
type Auth struct {
	UserID   string
	Policies []iam.Policy
	Session  *iam.Session // nil if no Session-Token was presented
}

type ctxKey string

const authKey ctxKey = "authproto_auth"

// ContextWithAuth stores the Auth for downstream handlers.
func ContextWithAuth(ctx context.Context, a Auth) context.Context {
	return context.WithValue(ctx, authKey, a)
}

// AuthFromContext retrieves the Auth stored by the middleware chain.
func AuthFromContext(ctx context.Context) (Auth, bool) {
	a, ok := ctx.Value(authKey).(Auth)
	return a, ok
}
