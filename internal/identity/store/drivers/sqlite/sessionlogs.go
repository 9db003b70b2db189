package sqlite

import (
	"context"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
)

type sessionLogsRepo struct {
	db querier
}

func (r *sessionLogsRepo) Create(ctx context.Context, l domain.SessionLog) error {
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_logs (id, account_id, organization_id, action,
			ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, mapOptionalString(l.AccountID), mapOptionalString(l.OrganizationID),
		string(l.Action), l.IPAddress, l.UserAgent, created.UTC())
	return err
}

func (r *sessionLogsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_logs WHERE created_at < ?`, cutoff.UTC())
	return err
}

func (r *sessionLogsRepo) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_logs WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}
