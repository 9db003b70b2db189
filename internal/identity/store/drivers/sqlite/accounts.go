package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
)

type accountsRepo struct {
	db querier
}

const accountColumns = `id, email, password_hash, name, totp_secret, is_active,
	email_verified, last_login_at, created_at, updated_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	var totpSecret sql.NullString
	var lastLogin sql.NullTime

	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &totpSecret,
		&a.Active, &a.EmailVerified, &lastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.TOTPSecret = mapNullStringPtr(totpSecret)
	a.LastLoginAt = mapNullTimePtr(lastLogin)
	return a, nil
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, name, totp_secret,
			is_active, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, a.Name, mapOptionalString(a.TOTPSecret),
		a.Active, a.EmailVerified, now, now)
	return mapConstraint(err)
}

func (r *accountsRepo) UpdateTOTPSecret(ctx context.Context, accountID string, secret *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET totp_secret = ?, updated_at = ? WHERE id = ?`,
		mapOptionalString(secret), time.Now().UTC(), accountID)
	return checkAffected(res, err)
}

func (r *accountsRepo) UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), accountID)
	return checkAffected(res, err)
}

func (r *accountsRepo) SetActive(ctx context.Context, accountID string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), accountID)
	return checkAffected(res, err)
}

func (r *accountsRepo) Delete(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	return checkAffected(res, err)
}
