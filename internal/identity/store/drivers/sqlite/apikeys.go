package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
)

type apiKeysRepo struct {
	db querier
}

const apiKeyColumns = `id, account_id, organization_id, name, key_hash, key_prefix,
	scopes, is_active, last_used_at, expires_at, created_at`

func scanAPIKey(scan func(dest ...any) error) (domain.APIKey, error) {
	var k domain.APIKey
	var scopes string
	var lastUsed, expires sql.NullTime

	err := scan(&k.ID, &k.AccountID, &k.OrganizationID, &k.Name, &k.KeyHash,
		&k.KeyPrefix, &scopes, &k.Active, &lastUsed, &expires, &k.CreatedAt)
	if err != nil {
		return domain.APIKey{}, err
	}

	if scopes != "" {
		k.Scopes = strings.Fields(scopes)
	}
	k.LastUsedAt = mapNullTimePtr(lastUsed)
	k.ExpiresAt = mapNullTimePtr(expires)
	return k, nil
}

func (r *apiKeysRepo) Create(ctx context.Context, k domain.APIKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, account_id, organization_id, name, key_hash,
			key_prefix, scopes, is_active, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.AccountID, k.OrganizationID, k.Name, k.KeyHash, k.KeyPrefix,
		strings.Join(k.Scopes, " "), k.Active, mapOptionalTime(k.ExpiresAt),
		time.Now().UTC())
	return mapConstraint(err)
}

func (r *apiKeysRepo) GetByHash(ctx context.Context, keyHash string) (domain.APIKey, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ? AND is_active = 1`,
		keyHash)
	k, err := scanAPIKey(row.Scan)
	if err != nil {
		return domain.APIKey{}, mapNotFound(err)
	}
	return k, nil
}

func (r *apiKeysRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.APIKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE account_id = ? ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *apiKeysRepo) Deactivate(ctx context.Context, accountID, keyID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = 0 WHERE id = ? AND account_id = ?`,
		keyID, accountID)
	return checkAffected(res, err)
}

func (r *apiKeysRepo) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, at.UTC(), keyID)
	return err
}

func (r *apiKeysRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < ?`,
		now.UTC())
	return err
}
