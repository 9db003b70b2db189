package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
)

type organizationsRepo struct {
	db querier
}

func scanOrganization(row *sql.Row) (domain.Organization, error) {
	var o domain.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Organization{}, mapNotFound(err)
	}
	return o, nil
}

func (r *organizationsRepo) GetByID(ctx context.Context, id string) (domain.Organization, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at, updated_at
		 FROM organizations WHERE id = ?`, id)
	return scanOrganization(row)
}

func (r *organizationsRepo) GetByName(ctx context.Context, name string) (domain.Organization, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at, updated_at
		 FROM organizations WHERE name = ? LIMIT 1`, name)
	return scanOrganization(row)
}

func (r *organizationsRepo) Create(ctx context.Context, o domain.Organization) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Active, now, now)
	return mapConstraint(err)
}

func (r *organizationsRepo) Delete(ctx context.Context, orgID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, orgID)
	return checkAffected(res, err)
}
