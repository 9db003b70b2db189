package domain

import "time"

// APIKey models a stored organization-scoped key. Only the SHA-256
// fingerprint of the opaque secret is persisted; the raw key is shown once
// at issue time.
type APIKey struct {
	ID             string
	AccountID      string
	OrganizationID string
	Name           string
	KeyHash        string // base64url SHA-256 fingerprint of the raw key
	KeyPrefix      string // first characters of the raw key, for display
	Scopes         []string
	Active         bool
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// Expired reports whether the key has a deadline in the past.
func (k APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
