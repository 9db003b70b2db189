package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/pkg/cryptox"
	"github.com/iris-platform/identity/pkg/idx"
	"github.com/iris-platform/identity/pkg/slogx"
)

const apiKeyPrefixLen = 8

var (
	ErrAPIKeyInvalid = errors.New("invalid API key")
	ErrAPIKeyExpired = errors.New("API key expired")
)

// APIKeyService issues and verifies opaque org-scoped API keys. Only a
// SHA-256 fingerprint is stored; the raw key is shown once at issue time.
type APIKeyService struct {
	Store store.Store
	Audit *AuditService
}

// IssuedKey pairs the stored record with the raw key. The raw value is
// never recoverable after this response.
type IssuedKey struct {
	Key domain.APIKey
	Raw string
}

// Issue creates a key scoped to an organization. The raw key has the
// shape ik_<prefix>_<secret>; the prefix is kept in clear for listings.
func (s *APIKeyService) Issue(ctx context.Context, accountID, orgID, name string, scopes []string, expiresAt *time.Time) (IssuedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "API Key"
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("generate API key: %w", err)
	}
	prefix := secret[:apiKeyPrefixLen]
	raw := "ik_" + prefix + "_" + secret[apiKeyPrefixLen:]

	key := domain.APIKey{
		ID:             idx.New().String(),
		AccountID:      accountID,
		OrganizationID: orgID,
		Name:           name,
		KeyHash:        cryptox.FingerprintToken(raw),
		KeyPrefix:      "ik_" + prefix,
		Scopes:         scopes,
		Active:         true,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.Store.APIKeys().Create(ctx, key); err != nil {
		return IssuedKey{}, err
	}

	return IssuedKey{Key: key, Raw: raw}, nil
}

// List returns the caller's keys, fingerprints and prefixes only.
func (s *APIKeyService) List(ctx context.Context, accountID string) ([]domain.APIKey, error) {
	return s.Store.APIKeys().ListByAccount(ctx, accountID)
}

// Revoke deactivates one of the caller's keys. Revoking someone else's
// key reports not found rather than leaking its existence.
func (s *APIKeyService) Revoke(ctx context.Context, accountID, keyID string) error {
	return s.Store.APIKeys().Deactivate(ctx, accountID, keyID)
}

// Verify resolves a raw key to its record, updates its usage timestamp,
// and writes an api_access audit row. Inactive and unknown keys are
// indistinguishable to the caller.
func (s *APIKeyService) Verify(ctx context.Context, raw, ip, userAgent string) (domain.APIKey, error) {
	l := slogx.FromContext(ctx)

	if !strings.HasPrefix(raw, "ik_") {
		return domain.APIKey{}, ErrAPIKeyInvalid
	}

	key, err := s.Store.APIKeys().GetByHash(ctx, cryptox.FingerprintToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.APIKey{}, ErrAPIKeyInvalid
		}
		return domain.APIKey{}, err
	}
	if key.Expired(time.Now().UTC()) {
		return domain.APIKey{}, ErrAPIKeyExpired
	}

	if err := s.Store.APIKeys().TouchLastUsed(ctx, key.ID, time.Now().UTC()); err != nil {
		l.Warn("failed to touch API key usage", "key_id", key.ID, "error", err)
	}
	s.Audit.Record(ctx, domain.ActionAPIAccess, &key.AccountID, &key.OrganizationID, ip, userAgent)

	return key, nil
}
