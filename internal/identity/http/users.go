package http

import (
	"net/http"

	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/pkg/httpx"
	"github.com/iris-platform/identity/pkg/slogx"
)

type ProfileHandler struct {
	AccountService *service.AccountService
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	profile, err := h.AccountService.GetProfile(ctx, account.ID)
	if err != nil {
		l.Error("profile load failed", "account_id", account.ID, "error", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, profileResponse(profile))
}
