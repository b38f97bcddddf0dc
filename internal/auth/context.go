package auth

import (
	"context"

	"github.com/ProfDrJones/journals/internal/store"
)

// userKey carries the account RequireBasicAuth authenticated.
type userKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated account, if any.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	user, _ := ctx.Value(userKey{}).(*store.User)
	return user, user != nil
}
