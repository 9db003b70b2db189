package sqlite

import (
	"context"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/store"
)

type membershipsRepo struct {
	db querier
}

func (r *membershipsRepo) Create(ctx context.Context, m domain.Membership) error {
	now := time.Now().UTC()
	joined := m.JoinedAt
	if joined.IsZero() {
		joined = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, account_id, organization_id, role, joined_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.AccountID, m.OrganizationID, string(m.Role), joined.UTC(), now)
	return mapConstraint(err)
}

func (r *membershipsRepo) Get(ctx context.Context, accountID, orgID string) (domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, organization_id, role, joined_at, updated_at
		 FROM memberships WHERE account_id = ? AND organization_id = ?`,
		accountID, orgID)

	var m domain.Membership
	var role string
	err := row.Scan(&m.ID, &m.AccountID, &m.OrganizationID, &role, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	m.Role = domain.Role(role)
	return m, nil
}

func (r *membershipsRepo) ListByAccount(ctx context.Context, accountID string) ([]store.AccountOrganization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.id, o.name, o.is_active, o.created_at, o.updated_at,
		        m.role, m.joined_at
		 FROM memberships m
		 JOIN organizations o ON o.id = m.organization_id
		 WHERE m.account_id = ?
		 ORDER BY m.joined_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.AccountOrganization
	for rows.Next() {
		var ao store.AccountOrganization
		var role string
		if err := rows.Scan(&ao.Organization.ID, &ao.Organization.Name,
			&ao.Organization.Active, &ao.Organization.CreatedAt,
			&ao.Organization.UpdatedAt, &role, &ao.JoinedAt); err != nil {
			return nil, err
		}
		ao.Role = domain.Role(role)
		out = append(out, ao)
	}
	return out, rows.Err()
}

func (r *membershipsRepo) ListMembers(ctx context.Context, orgID string) ([]store.OrganizationMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.email, m.role, m.joined_at
		 FROM memberships m
		 JOIN accounts a ON a.id = m.account_id
		 WHERE m.organization_id = ?
		 ORDER BY m.joined_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.OrganizationMember
	for rows.Next() {
		var om store.OrganizationMember
		var role string
		if err := rows.Scan(&om.AccountID, &om.Name, &om.Email, &role, &om.JoinedAt); err != nil {
			return nil, err
		}
		om.Role = domain.Role(role)
		out = append(out, om)
	}
	return out, rows.Err()
}
