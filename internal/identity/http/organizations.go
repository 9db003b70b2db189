package http

import (
	"net/http"

	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/pkg/httpx"
	"github.com/iris-platform/identity/pkg/slogx"
)

type OrganizationsHandler struct {
	OrgService *service.OrgService
}

// HandleList returns the caller's organizations with their role in each.
func (h *OrganizationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	orgs, err := h.OrgService.ListForAccount(ctx, account.ID)
	if err != nil {
		l.Error("organization list failed", "account_id", account.ID, "error", err)
		ErrServerError.WriteError(w)
		return
	}

	out := make([]map[string]any, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, map[string]any{
			"id":        o.Organization.ID,
			"name":      o.Organization.Name,
			"role":      string(o.Role),
			"joined_at": o.JoinedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"organizations": out})
}

// HandleMembers lists every member of an organization. The membership
// guard has already established the caller belongs to it.
func (h *OrganizationsHandler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	orgID := r.PathValue("orgId")
	members, err := h.OrgService.ListMembers(ctx, orgID)
	if err != nil {
		l.Error("member list failed", "org_id", orgID, "error", err)
		ErrServerError.WriteError(w)
		return
	}

	out := make([]map[string]any, 0, len(members))
	for _, m := range members {
		out = append(out, map[string]any{
			"account_id": m.AccountID,
			"name":       m.Name,
			"email":      m.Email,
			"role":       string(m.Role),
			"joined_at":  m.JoinedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"members": out})
}
