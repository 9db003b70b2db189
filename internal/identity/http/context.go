package http

import (
	"context"

	"github.com/iris-platform/identity/internal/identity/domain"
)

type ctxKey int

const (
	ctxKeyAccount ctxKey = iota
	ctxKeyMembership
	ctxKeyAccessToken
)

// AccountFromContext returns the authenticated account attached by
// RequireAuth.
func AccountFromContext(ctx context.Context) (domain.Account, bool) {
	a, ok := ctx.Value(ctxKeyAccount).(domain.Account)
	return a, ok
}

// MembershipFromContext returns the membership resolved by
// RequireMembership.
func MembershipFromContext(ctx context.Context) (domain.Membership, bool) {
	m, ok := ctx.Value(ctxKeyMembership).(domain.Membership)
	return m, ok
}

// accessTokenFromContext returns the raw bearer token for the request,
// needed by logout to blacklist the exact presented token.
func accessTokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(ctxKeyAccessToken).(string)
	return t, ok
}
