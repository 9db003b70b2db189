// Package cache defines the revocation cache interface: a fast TTL-bounded
// store holding blacklisted access tokens, the single live refresh token
// per account, and pending TOTP secrets awaiting enrollment confirmation.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key has no entry (or it expired).
	ErrNotFound = errors.New("cache: not found")

	// ErrRefreshStale is returned by RotateRefresh when the presented
	// token is not the account's current refresh token, including replays
	// of an already-rotated token. A stale rotation is a theft signal.
	ErrRefreshStale = errors.New("cache: stale refresh token")
)

// Cache is implemented by the redis driver. Every operation is bounded: the
// driver must fail rather than hang so callers can surface a 5xx.
type Cache interface {
	// BlacklistAccess records an access token as revoked for ttl. The TTL
	// must be at least the token's remaining lifetime so the blacklist
	// entry never lapses before the token itself expires.
	BlacklistAccess(ctx context.Context, token string, ttl time.Duration) error

	// IsAccessBlacklisted reports whether the exact token string has been
	// revoked.
	IsAccessBlacklisted(ctx context.Context, token string) (bool, error)

	// PutRefresh records token as the single live refresh token for the
	// account, overwriting any previous one.
	PutRefresh(ctx context.Context, accountID, token string, ttl time.Duration) error

	// GetRefresh returns the account's current refresh token, or
	// ErrNotFound.
	GetRefresh(ctx context.Context, accountID string) (string, error)

	// RotateRefresh atomically replaces the account's refresh token with
	// next, but only if presented matches the stored value byte for byte.
	// Missing or mismatched entries fail with ErrRefreshStale and leave
	// the slot untouched. There is no window in which two refresh tokens
	// are simultaneously valid for the same account.
	RotateRefresh(ctx context.Context, accountID, presented, next string, ttl time.Duration) error

	// DeleteRefresh removes the account's refresh entry. Future rotation
	// attempts fail with ErrRefreshStale.
	DeleteRefresh(ctx context.Context, accountID string) error

	// PutPendingTOTP stores a not-yet-committed TOTP secret for ttl.
	PutPendingTOTP(ctx context.Context, accountID, secret string, ttl time.Duration) error

	// GetPendingTOTP returns the pending secret, or ErrNotFound once the
	// slot expired or was consumed.
	GetPendingTOTP(ctx context.Context, accountID string) (string, error)

	// DeletePendingTOTP discards the pending slot.
	DeletePendingTOTP(ctx context.Context, accountID string) error

	// Ping verifies the cache is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying client.
	Close() error
}
