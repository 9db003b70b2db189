package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	rediscache "github.com/iris-platform/identity/internal/identity/cache/drivers/redis"
	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/internal/identity/store/drivers/sqlite"
	"github.com/iris-platform/identity/pkg/httpx"
)

type testEnv struct {
	Router   *Router
	Accounts *service.AccountService
	MFA      *service.MFAService
	Redis    *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, func(*Router) {})
}

// newTestEnvWith builds the full stack and lets the caller tune the router
// before routes are applied. Rate limit budgets default to generous values
// so multi-step flows never trip the limiter unless a test wants them to.
func newTestEnvWith(t *testing.T, tune func(*Router)) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	c := rediscache.NewWithClient(client, time.Second)
	t.Cleanup(func() { _ = c.Close() })

	tokens := &service.TokenService{
		Cache:         c,
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		Issuer:        "identity-test",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	}
	mfa := &service.MFAService{Store: st, Cache: c, Issuer: "identity-test"}
	accounts := &service.AccountService{Store: st, Tokens: tokens, MFA: mfa}
	audit := &service.AuditService{Store: st}

	r := NewRouter("test", st, c, slog.Default())
	r.AccountService = accounts
	r.TokenService = tokens
	r.MFAService = mfa
	r.OrgService = &service.OrgService{Store: st}
	r.APIKeyService = &service.APIKeyService{Store: st, Audit: audit}
	r.Audit = audit

	lots := httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
	r.AuthRateLimit = lots
	r.GeneralRateLimit = lots

	tune(r)
	r.ApplyRoutes()

	return &testEnv{Router: r, Accounts: accounts, MFA: mfa, Redis: mr}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type tokenPairBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func (e *testEnv) register(t *testing.T, email, name, org string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":             email,
		"password":          "Sup3rSecret",
		"name":              name,
		"organization_name": org,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) login(t *testing.T, email string) tokenPairBody {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "Sup3rSecret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[tokenPairBody](t, rec)
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "Alice", "")

	pair := env.login(t, "alice@example.com")
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, 3600, pair.ExpiresIn)
	require.Equal(t, "no-store", env.do(t, http.MethodGet, "/users/me", pair.AccessToken, nil).Header().Get("Cache-Control"))

	// The profile endpoint accepts the minted token.
	rec := env.do(t, http.MethodGet, "/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[map[string]any](t, rec)
	user := profile["user"].(map[string]any)
	require.Equal(t, "alice@example.com", user["email"])

	// Refresh rotates the pair; the old refresh token dies.
	rec = env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decode[tokenPairBody](t, rec)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	rec = env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout blacklists the access token and kills the refresh slot.
	rec = env.do(t, http.MethodPost, "/auth/logout", rotated.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/users/me", rotated.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": rotated.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "Alice", "")

	unknown := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "Sup3rSecret",
	})
	wrongPass := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "WrongPass1",
	})

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	require.JSONEq(t, unknown.Body.String(), wrongPass.Body.String())
}

func TestRegisterValidationResponses(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "Alice", "")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "alice@example.com", "password": "Sup3rSecret", "name": "Imposter",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "bob@example.com", "password": "weak", "name": "Bob",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTwoFactorFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "Alice", "")
	pair := env.login(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/users/me/2fa/setup", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setup := decode[map[string]string](t, rec)
	require.NotEmpty(t, setup["secret"])
	require.Contains(t, setup["provisioning_uri"], "otpauth://totp/")
	require.True(t, strings.HasPrefix(setup["qr_code"], "data:image/png;base64,"))

	t.Run("bad code does not enable", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/me/2fa/verify", pair.AccessToken, map[string]string{"totp_code": "000000"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	code := totpCode(t, setup["secret"])
	rec = env.do(t, http.MethodPost, "/users/me/2fa/verify", pair.AccessToken, map[string]string{"totp_code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("setup again is a bad request", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/me/2fa/setup", pair.AccessToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("verify without a pending setup is a bad request", func(t *testing.T) {
		env.register(t, "bob@example.com", "Bob", "")
		bobPair := env.login(t, "bob@example.com")

		rec := env.do(t, http.MethodPost, "/users/me/2fa/verify", bobPair.AccessToken, map[string]string{"totp_code": "000000"})
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("login now requires a code", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "Sup3rSecret",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string]any](t, rec)
		require.Equal(t, true, body["requires_2fa"])
		require.Empty(t, body["access_token"])
	})

	t.Run("login with code succeeds", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email":     "alice@example.com",
			"password":  "Sup3rSecret",
			"totp_code": totpCode(t, setup["secret"]),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[map[string]any](t, rec)
		require.NotEmpty(t, body["access_token"])
	})
}

func TestAuthRateLimitSharedAcrossRoutes(t *testing.T) {
	env := newTestEnvWith(t, func(r *Router) {
		r.AuthRateLimit = httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}
	})

	// Three requests across different credential routes drain one budget.
	env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "Sup3rSecret",
	})
	env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": "garbage"})
	env.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "bad"})

	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "Sup3rSecret",
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLogoutRateLimitsUnauthenticatedSpam(t *testing.T) {
	env := newTestEnvWith(t, func(r *Router) {
		r.AuthRateLimit = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	})

	// Tokenless logout attempts are counted before authentication runs.
	for range 2 {
		rec := env.do(t, http.MethodPost, "/auth/logout", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Equal(t, "ok", body["status"])

	t.Run("degraded when the cache is down", func(t *testing.T) {
		env.Redis.SetError("connection refused")
		defer env.Redis.SetError("")

		rec := env.do(t, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
