package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/pkg/idx"
)

func totpCode(t *testing.T, secret string) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	return code
}

func TestRequireAuthRejections(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "Alice", "")
	pair := env.login(t, "alice@example.com")

	for _, tc := range []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
		{"refresh token in the access slot", pair.RefreshToken},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/users/me", tc.token, nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	t.Run("deactivated account", func(t *testing.T) {
		ctx := context.Background()
		account, err := env.Router.store.Accounts().GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NoError(t, env.Router.store.Accounts().SetActive(ctx, account.ID, false))
		defer func() {
			require.NoError(t, env.Router.store.Accounts().SetActive(ctx, account.ID, true))
		}()

		rec := env.do(t, http.MethodGet, "/users/me", pair.AccessToken, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMembershipMatrix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Alice founds an org (admin); Bob registers into the default org and
	// is added to Alice's org as a viewer; Carol has no membership at all.
	env.register(t, "alice@example.com", "Alice", "Acme Corp")
	env.register(t, "bob@example.com", "Bob", "")
	env.register(t, "carol@example.com", "Carol", "")

	st := env.Router.store
	org, err := st.Organizations().GetByName(ctx, "Acme Corp")
	require.NoError(t, err)
	bob, err := st.Accounts().GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, st.Memberships().Create(ctx, domain.Membership{
		ID:             idx.New().String(),
		AccountID:      bob.ID,
		OrganizationID: org.ID,
		Role:           domain.RoleViewer,
		JoinedAt:       now,
		UpdatedAt:      now,
	}))

	alicePair := env.login(t, "alice@example.com")
	bobPair := env.login(t, "bob@example.com")
	carolPair := env.login(t, "carol@example.com")

	membersPath := "/organizations/" + org.ID + "/members"

	t.Run("admin member sees the list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, membersPath, alicePair.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[map[string][]map[string]any](t, rec)
		require.Len(t, body["members"], 2)
	})

	t.Run("viewer member sees the list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, membersPath, bobPair.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-member gets 403, not 401", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, membersPath, carolPair.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated gets 401, not 403", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, membersPath, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown org is a 403 for everyone", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/organizations/"+idx.New().String()+"/members", alicePair.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAPIKeyEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "alice@example.com", "Alice", "Acme Corp")
	env.register(t, "carol@example.com", "Carol", "")

	st := env.Router.store
	org, err := st.Organizations().GetByName(ctx, "Acme Corp")
	require.NoError(t, err)

	alicePair := env.login(t, "alice@example.com")
	carolPair := env.login(t, "carol@example.com")

	issuePath := "/organizations/" + org.ID + "/api-keys"

	t.Run("non-member cannot issue", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, issuePath, carolPair.AccessToken, map[string]any{"name": "ci"})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec := env.do(t, http.MethodPost, issuePath, alicePair.AccessToken, map[string]any{
		"name":   "ci",
		"scopes": []string{"read"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issued := decode[map[string]any](t, rec)
	require.NotEmpty(t, issued["api_key"])

	rec = env.do(t, http.MethodGet, "/users/me/api-keys", alicePair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[map[string][]map[string]any](t, rec)
	require.Len(t, listing["keys"], 1)
	keyID := listing["keys"][0]["id"].(string)
	require.NotContains(t, rec.Body.String(), issued["api_key"])

	t.Run("revoking someone else's key is a 404", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/users/me/api-keys/"+keyID, carolPair.AccessToken, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec = env.do(t, http.MethodDelete, "/users/me/api-keys/"+keyID, alicePair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/me/api-keys", alicePair.AccessToken, nil)
	listing = decode[map[string][]map[string]any](t, rec)
	require.False(t, listing["keys"][0]["is_active"].(bool))
}
