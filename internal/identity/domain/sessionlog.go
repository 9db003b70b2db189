package domain

import "time"

// SessionAction enumerates auditable session events.
type SessionAction string

const (
	ActionLogin        SessionAction = "login"
	ActionLogout       SessionAction = "logout"
	ActionTokenRefresh SessionAction = "token_refresh"
	ActionAPIAccess    SessionAction = "api_access"
)

// SessionLog is one audit row. Account and organization references are kept
// nullable so rows survive parent deletion.
type SessionLog struct {
	ID             string
	AccountID      *string
	OrganizationID *string
	Action         SessionAction
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}
