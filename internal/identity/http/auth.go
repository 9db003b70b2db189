package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/obs"
	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/pkg/httpx"
	"github.com/iris-platform/identity/pkg/slogx"
)

type RegisterHandler struct {
	AccountService *service.AccountService
}

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Name             string `json:"name"`
	OrganizationName string `json:"organization_name"`
}

type accountResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Has2FA bool   `json:"has_2fa"`
}

type organizationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrBadRequest.WriteError(w)
		return
	}

	profile, err := h.AccountService.Register(ctx, req.Email, req.Password, req.Name, req.OrganizationName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			ErrEmailTaken.WriteError(w)
		case errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrWeakPassword):
			validationError(err.Error()).WriteError(w)
		default:
			l.Error("registration failed", "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	l.Info("account registered", "account_id", profile.Account.ID)
	httpx.WriteJSON(w, http.StatusCreated, profileResponse(profile))
}

type LoginHandler struct {
	AccountService *service.AccountService
	Audit          *service.AuditService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrBadRequest.WriteError(w)
		return
	}

	account, pair, err := h.AccountService.Login(ctx, req.Email, req.Password, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMFARequired):
			// Password checked out; the client should prompt for a code
			// and retry.
			obs.ObserveLogin("mfa_required")
			httpx.NoCache(w)
			httpx.WriteJSON(w, http.StatusOK, map[string]bool{"requires_2fa": true})
		case errors.Is(err, service.ErrInvalidCredentials):
			obs.ObserveLogin("failure")
			ErrInvalidCredentials.WriteError(w)
		default:
			l.Error("login failed", "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	obs.ObserveLogin("success")
	obs.ObserveTokensIssued()
	h.Audit.Record(ctx, domain.ActionLogin, &account.ID, nil, httpx.IPKeyExtractor(r), r.UserAgent())
	l.Info("login succeeded", "account_id", account.ID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
		"user": accountResponse{
			ID:     account.ID,
			Email:  account.Email,
			Name:   account.Name,
			Has2FA: account.MFAEnabled(),
		},
	})
}

type RefreshHandler struct {
	TokenService *service.TokenService
	Store        store.Store
	Audit        *service.AuditService
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	accountID, err := h.TokenService.Subject(req.RefreshToken)
	if err != nil {
		ErrInvalidToken.WriteError(w)
		return
	}

	account, err := h.Store.Accounts().GetByID(ctx, accountID)
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

	pair, err := h.TokenService.RotateRefresh(ctx, account, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshStale),
			errors.Is(err, service.ErrTokenInvalid),
			errors.Is(err, service.ErrTokenExpired),
			errors.Is(err, service.ErrTokenTypeMismatch):
			ErrInvalidToken.WriteError(w)
		default:
			l.Error("refresh rotation failed", "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	obs.ObserveTokensIssued()
	h.Audit.Record(ctx, domain.ActionTokenRefresh, &account.ID, nil, httpx.IPKeyExtractor(r), r.UserAgent())

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type LogoutHandler struct {
	TokenService *service.TokenService
	Audit        *service.AuditService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}
	raw, ok := accessTokenFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.TokenService.RevokeAccess(ctx, raw); err != nil {
		l.Error("access revocation failed", "account_id", account.ID, "error", err)
		ErrServerError.WriteError(w)
		return
	}
	if err := h.TokenService.RevokeRefresh(ctx, account.ID); err != nil {
		l.Error("refresh revocation failed", "account_id", account.ID, "error", err)
		ErrServerError.WriteError(w)
		return
	}

	obs.ObserveRevocation()
	h.Audit.Record(ctx, domain.ActionLogout, &account.ID, nil, httpx.IPKeyExtractor(r), r.UserAgent())
	l.Info("logout", "account_id", account.ID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func profileResponse(p service.Profile) map[string]any {
	orgs := make([]organizationResponse, 0, len(p.Organizations))
	for _, o := range p.Organizations {
		orgs = append(orgs, organizationResponse{
			ID:   o.Organization.ID,
			Name: o.Organization.Name,
			Role: string(o.Role),
		})
	}
	return map[string]any{
		"user": accountResponse{
			ID:     p.Account.ID,
			Email:  p.Account.Email,
			Name:   p.Account.Name,
			Has2FA: p.Account.MFAEnabled(),
		},
		"organizations": orgs,
	}
}
