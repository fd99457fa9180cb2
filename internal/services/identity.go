package services

import (
	"context"
	"strings"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// IdentityProvider yields the authenticated caller for a request context.
// Services receive one at construction; they never look identity up
// globally.
type IdentityProvider interface {
	Current(ctx context.Context) (domain.Caller, bool)
}

// IdentityFunc adapts a function to IdentityProvider.
type IdentityFunc func(ctx context.Context) (domain.Caller, bool)

func (f IdentityFunc) Current(ctx context.Context) (domain.Caller, bool) { return f(ctx) }

// StaticIdentity always reports the same caller; an empty UserID means
// signed out. Useful in tests and tooling.
func StaticIdentity(c domain.Caller) IdentityProvider {
	return IdentityFunc(func(context.Context) (domain.Caller, bool) {
		return c, strings.TrimSpace(c.UserID) != ""
	})
}

// caller resolves the signed-in identity or ErrNotAuthenticated.
func caller(ctx context.Context, p IdentityProvider) (domain.Caller, error) {
	if p == nil {
		return domain.Caller{}, ErrNotAuthenticated
	}
	c, ok := p.Current(ctx)
	if !ok || !domain.ValidID(c.UserID) {
		return domain.Caller{}, ErrNotAuthenticated
	}
	return c, nil
}

// requireSelf resolves the caller and checks it is uid.
func requireSelf(ctx context.Context, p IdentityProvider, uid string) (domain.Caller, error) {
	c, err := caller(ctx, p)
	if err != nil {
		return c, err
	}
	if c.UserID != uid {
		return c, ErrForbidden
	}
	return c, nil
}

// defaultUsername is the display name given to profiles created without one.
func defaultUsername(uid string) string {
	if len(uid) > 8 {
		uid = uid[:8]
	}
	return "User_" + uid
}
