package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/pkg/httpx"
	"github.com/iris-platform/identity/pkg/slogx"
)

type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleSetup starts TOTP enrollment. The secret and provisioning URI
// are only valid for the pending window; nothing is committed until the
// first code is verified.
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	enrollment, err := h.MFAService.BeginSetup(ctx, account.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMFAAlreadyEnabled):
			ErrMFAAlreadyEnabled.WriteError(w)
		default:
			l.Error("MFA setup failed", "account_id", account.ID, "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"secret":           enrollment.Secret,
		"qr_code":          enrollment.QRCode,
		"provisioning_uri": enrollment.ProvisioningURI,
		"issuer":           enrollment.Issuer,
		"account":          enrollment.Account,
	})
}

type mfaVerifyRequest struct {
	TOTPCode string `json:"totp_code"`
}

// HandleVerify confirms enrollment with the first valid code.
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	var req mfaVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TOTPCode == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	if err := h.MFAService.ConfirmSetup(ctx, account.ID, req.TOTPCode); err != nil {
		switch {
		case errors.Is(err, service.ErrMFASetupExpired):
			ErrMFASetupExpired.WriteError(w)
		case errors.Is(err, service.ErrInvalidTOTPCode):
			validationError("invalid verification code").WriteError(w)
		default:
			l.Error("MFA verification failed", "account_id", account.ID, "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	l.Info("MFA enabled", "account_id", account.ID)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "two-factor authentication enabled"})
}

// HandleDisable turns MFA off after one final code check.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	account, ok := AccountFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	var req mfaVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TOTPCode == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	if err := h.MFAService.Disable(ctx, account, req.TOTPCode); err != nil {
		switch {
		case errors.Is(err, service.ErrMFANotEnabled):
			ErrBadRequest.WriteError(w)
		case errors.Is(err, service.ErrInvalidTOTPCode):
			validationError("invalid verification code").WriteError(w)
		default:
			l.Error("MFA disable failed", "account_id", account.ID, "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	l.Info("MFA disabled", "account_id", account.ID)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "two-factor authentication disabled"})
}
