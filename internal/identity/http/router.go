// Package http wires the identity service's HTTP surface: route
// registration, per-route middleware chains, and the handlers that map
// service results onto JSON responses.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/iris-platform/identity/internal/identity/cache"
	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/obs"
	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/pkg/httpx"
	"github.com/iris-platform/identity/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	cache cache.Cache

	// Rate limit profiles, overridable before ApplyRoutes.
	AuthRateLimit    httpx.RateLimitConfig
	GeneralRateLimit httpx.RateLimitConfig

	AccountService *service.AccountService
	TokenService   *service.TokenService
	MFAService     *service.MFAService
	OrgService     *service.OrgService
	APIKeyService  *service.APIKeyService
	Audit          *service.AuditService
}

func NewRouter(buildVersion string, st store.Store, c cache.Cache, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		cache:        c,
		logger:       logger,

		AuthRateLimit:    httpx.AuthLimit,
		GeneralRateLimit: httpx.GeneralLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	// One limiter per profile, shared across every route it guards, so
	// the budget covers the whole surface rather than resetting per route.
	authLimit := httpx.RateLimitByIP(r.AuthRateLimit)
	generalLimit := httpx.RateLimitByIP(r.GeneralRateLimit)

	r.registerAuth(authLimit)
	r.registerUsers(generalLimit)
	r.registerOrganizations(generalLimit)
	r.registerAPIKeys(generalLimit)
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware
// chain around the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth(authLimit httpx.Middleware) {
	// Credential endpoints share the strict limiter, so the budget is 5
	// attempts per window across all of /auth, not per route. The limiter
	// sits outermost so even unauthenticated spam is counted.
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(&RegisterHandler{AccountService: r.AccountService},
			authLimit,
		),
	)
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(&LoginHandler{AccountService: r.AccountService, Audit: r.Audit},
			authLimit,
		),
	)
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(&RefreshHandler{TokenService: r.TokenService, Store: r.store, Audit: r.Audit},
			authLimit,
		),
	)
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(&LogoutHandler{TokenService: r.TokenService, Audit: r.Audit},
			authLimit,
			RequireAuth(r.TokenService, r.store),
		),
	)
}

func (r *Router) registerUsers(generalLimit httpx.Middleware) {
	profile := &ProfileHandler{AccountService: r.AccountService}
	mfa := &MFAHandler{MFAService: r.MFAService}

	authed := func(h http.Handler) http.Handler {
		return httpx.Chain(h,
			generalLimit,
			RequireAuth(r.TokenService, r.store),
		)
	}

	r.Mux.Handle("GET /users/me", authed(profile))
	r.Mux.Handle("POST /users/me/2fa/setup", authed(http.HandlerFunc(mfa.HandleSetup)))
	r.Mux.Handle("POST /users/me/2fa/verify", authed(http.HandlerFunc(mfa.HandleVerify)))
	r.Mux.Handle("POST /users/me/2fa/disable", authed(http.HandlerFunc(mfa.HandleDisable)))
}

func (r *Router) registerOrganizations(generalLimit httpx.Middleware) {
	h := &OrganizationsHandler{OrgService: r.OrgService}

	r.Mux.Handle("GET /organizations",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			generalLimit,
			RequireAuth(r.TokenService, r.store),
		),
	)

	// Any role sees the member list; the guard only requires membership.
	r.Mux.Handle("GET /organizations/{orgId}/members",
		httpx.Chain(http.HandlerFunc(h.HandleMembers),
			generalLimit,
			RequireAuth(r.TokenService, r.store),
			RequireMembership(r.store, domain.Role("")),
		),
	)
}

func (r *Router) registerAPIKeys(generalLimit httpx.Middleware) {
	h := &APIKeysHandler{APIKeyService: r.APIKeyService}

	r.Mux.Handle("POST /organizations/{orgId}/api-keys",
		httpx.Chain(http.HandlerFunc(h.HandleIssue),
			generalLimit,
			RequireAuth(r.TokenService, r.store),
			RequireMembership(r.store, domain.Role("")),
		),
	)
	r.Mux.Handle("GET /users/me/api-keys",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			generalLimit,
			RequireAuth(r.TokenService, r.store),
		),
	)
	r.Mux.Handle("DELETE /users/me/api-keys/{keyID}",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			generalLimit,
			RequireAuth(r.TokenService, r.store),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /health", &HealthHandler{
		Store:     r.store,
		Cache:     r.cache,
		Version:   r.buildVersion,
		StartTime: r.startTime,
	})
	r.Mux.Handle("GET /metrics", obs.Handler())
}
