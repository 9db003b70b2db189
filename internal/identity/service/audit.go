package service

import (
	"context"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/pkg/idx"
	"github.com/iris-platform/identity/pkg/slogx"
)

// AuditService appends session log rows. Writes are best effort: an
// audit failure is logged and swallowed, never surfaced to the request.
type AuditService struct {
	Store store.Store
}

// Record appends one row. accountID and orgID may be nil for events
// that could not be attributed.
func (s *AuditService) Record(ctx context.Context, action domain.SessionAction, accountID, orgID *string, ip, userAgent string) {
	err := s.Store.SessionLogs().Create(ctx, domain.SessionLog{
		ID:             idx.New().String(),
		AccountID:      accountID,
		OrganizationID: orgID,
		Action:         action,
		IPAddress:      ip,
		UserAgent:      userAgent,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to write session log",
			"action", action, "error", err)
	}
}
