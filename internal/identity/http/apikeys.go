package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/pkg/httpx"
	"github.com/iris-platform/identity/pkg/slogx"
)

type APIKeysHandler struct {
	APIKeyService *service.APIKeyService
}

type issueKeyRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// HandleIssue creates an organization-scoped key. The raw key appears
// in this response and nowhere else.
func (h *APIKeysHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}
	orgID := r.PathValue("orgId")

	var req issueKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrBadRequest.WriteError(w)
		return
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		validationError("expires_at must be in the future").WriteError(w)
		return
	}

	issued, err := h.APIKeyService.Issue(ctx, account.ID, orgID, req.Name, req.Scopes, req.ExpiresAt)
	if err != nil {
		l.Error("API key issue failed", "account_id", account.ID, "org_id", orgID, "error", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"api_key": issued.Raw,
		"key":     keyResponse(issued.Key),
	})
}

// HandleList returns the caller's keys, never the raw values.
func (h *APIKeysHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	keys, err := h.APIKeyService.List(ctx, account.ID)
	if err != nil {
		l.Error("API key list failed", "account_id", account.ID, "error", err)
		ErrServerError.WriteError(w)
		return
	}

	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyResponse(k))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"keys": out})
}

// HandleRevoke deactivates one of the caller's keys.
func (h *APIKeysHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}
	keyID := r.PathValue("keyID")

	if err := h.APIKeyService.Revoke(ctx, account.ID, keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ErrNotFound.WriteError(w)
			return
		}
		l.Error("API key revoke failed", "account_id", account.ID, "key_id", keyID, "error", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "key revoked"})
}

func keyResponse(k domain.APIKey) map[string]any {
	return map[string]any{
		"id":              k.ID,
		"organization_id": k.OrganizationID,
		"name":            k.Name,
		"key_prefix":      k.KeyPrefix,
		"scopes":          k.Scopes,
		"is_active":       k.Active,
		"last_used_at":    k.LastUsedAt,
		"expires_at":      k.ExpiresAt,
		"created_at":      k.CreatedAt,
	}
}
