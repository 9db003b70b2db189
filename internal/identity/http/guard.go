package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/pkg/httpx"
	"github.com/iris-platform/identity/pkg/slogx"
)

// RequireAuth authenticates the request from its bearer token. The
// token is verified (signature, expiry, blacklist), the account is
// loaded and must be active, and both ride the request context for
// downstream handlers. Every failure mode returns the same 401.
func RequireAuth(tokens *service.TokenService, st store.Store) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := slogx.FromContext(ctx)

			raw, ok := bearerToken(r)
			if !ok {
				ErrInvalidToken.WriteError(w)
				return
			}

			claims, err := tokens.VerifyAccess(ctx, raw)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrTokenInvalid),
					errors.Is(err, service.ErrTokenExpired),
					errors.Is(err, service.ErrTokenRevoked):
					ErrInvalidToken.WriteError(w)
				default:
					l.Error("token verification failed", "error", err)
					ErrServerError.WriteError(w)
				}
				return
			}

			account, err := st.Accounts().GetByID(ctx, claims.Subject)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					ErrInvalidToken.WriteError(w)
					return
				}
				l.Error("account load failed", "error", err)
				ErrServerError.WriteError(w)
				return
			}
			if !account.Active {
				ErrInvalidToken.WriteError(w)
				return
			}

			ctx = contextWithAuth(ctx, account, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMembership authorizes an already-authenticated request against
// an organization. The two lookups stay distinct: no membership at all
// is a 403 forbidden, an insufficient role is a 403 with its own code,
// and neither is ever folded into a 401.
//
// The organization id comes from the {orgId} path value when the route
// carries one, otherwise from an organization_id field in the JSON body.
func RequireMembership(st store.Store, role domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := slogx.FromContext(ctx)

			account, ok := AccountFromContext(ctx)
			if !ok {
				ErrInvalidToken.WriteError(w)
				return
			}

			orgID := r.PathValue("orgId")
			if orgID == "" {
				orgID = orgIDFromBody(r)
			}
			if orgID == "" {
				ErrBadRequest.WriteError(w)
				return
			}

			membership, err := st.Memberships().Get(ctx, account.ID, orgID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					ErrForbidden.WriteError(w)
					return
				}
				l.Error("membership load failed", "error", err)
				ErrServerError.WriteError(w)
				return
			}

			if !membership.Role.Satisfies(role) {
				ErrInsufficientRole.WriteError(w)
				return
			}

			ctx = contextWithMembership(ctx, membership)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithAuth(ctx context.Context, account domain.Account, token string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyAccount, account)
	return context.WithValue(ctx, ctxKeyAccessToken, token)
}

func contextWithMembership(ctx context.Context, m domain.Membership) context.Context {
	return context.WithValue(ctx, ctxKeyMembership, m)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// orgIDFromBody peeks at the JSON body for an organization_id field and
// restores the body so the handler can decode it again.
func orgIDFromBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	var body struct {
		OrganizationID string `json:"organization_id"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.OrganizationID
}
