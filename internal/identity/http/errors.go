package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/iris-platform/identity/pkg/httpx"
)

// APIError is a JSON error response carrying its HTTP status. Handlers
// map service sentinel errors onto the predefined values below so the
// wire codes stay stable regardless of internal error wording.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes the error to the response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	ErrBadRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        "invalid_request",
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials covers every authentication failure: unknown
	// email, wrong password, bad TOTP code, inactive account. One body
	// for all of them so nothing about account existence leaks.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        "invalid_credentials",
		Description: "invalid credentials",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        "invalid_token",
		Description: "the token is missing, malformed, expired, or revoked",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        "forbidden",
		Description: "you do not have access to this organization",
	}

	ErrInsufficientRole = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        "insufficient_role",
		Description: "your role does not permit this operation",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        "not_found",
		Description: "the requested resource does not exist",
	}

	ErrEmailTaken = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        "email_taken",
		Description: "an account with this email already exists",
	}

	ErrMFAAlreadyEnabled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        "mfa_already_enabled",
		Description: "two-factor authentication is already enabled",
	}

	ErrMFASetupExpired = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        "mfa_setup_expired",
		Description: "there is no pending setup session, start again",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        "server_error",
		Description: "an internal error occurred",
	}
)

// validationError builds a 400 with a field-specific description.
func validationError(description string) *APIError {
	return &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        "invalid_request",
		Description: description,
	}
}
