// Package redis implements the revocation cache on Redis. Key shapes:
//
//	blacklist:<token>   revoked access tokens, TTL = remaining lifetime
//	refresh:<account>   single live refresh token per account
//	2fa_setup:<account> pending TOTP secret awaiting confirmation
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iris-platform/identity/internal/identity/cache"
	"github.com/redis/go-redis/v9"
)

const (
	blacklistPrefix = "blacklist:"
	refreshPrefix   = "refresh:"
	totpSetupPrefix = "2fa_setup:"
)

// Rotation outcomes returned by the compare-and-swap script.
const (
	rotateStatusMissing  int64 = 0
	rotateStatusMismatch int64 = 1
	rotateStatusRotated  int64 = 2
)

// rotateRefreshScript swaps the refresh slot only when the presented token
// matches the stored one, so two near-simultaneous rotations cannot both
// succeed. ARGV: presented, next, ttl in milliseconds.
const rotateRefreshScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

type Config struct {
	Addr     string
	Password string
	DB       int

	// OpTimeout bounds each cache call so a dead Redis surfaces as an
	// error instead of a stalled request. Zero means 3 seconds.
	OpTimeout time.Duration
}

type Cache struct {
	client    *redis.Client
	opTimeout time.Duration
}

func New(cfg Config) *Cache {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 3 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.OpTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})
	return &Cache{client: client, opTimeout: cfg.OpTimeout}
}

// NewWithClient wraps an existing client. Used by tests running against
// miniredis.
func NewWithClient(client *redis.Client, opTimeout time.Duration) *Cache {
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	return &Cache{client: client, opTimeout: opTimeout}
}

func (c *Cache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *Cache) BlacklistAccess(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired; verification fails on expiry anyway.
		return nil
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil {
		return fmt.Errorf("cache: blacklist access: %w", err)
	}
	return nil
}

func (c *Cache) IsAccessBlacklisted(ctx context.Context, token string) (bool, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	_, err := c.client.Get(ctx, blacklistPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: blacklist lookup: %w", err)
	}
	return true, nil
}

func (c *Cache) PutRefresh(ctx context.Context, accountID, token string, ttl time.Duration) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Set(ctx, refreshPrefix+accountID, token, ttl).Err(); err != nil {
		return fmt.Errorf("cache: put refresh: %w", err)
	}
	return nil
}

func (c *Cache) GetRefresh(ctx context.Context, accountID string) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	val, err := c.client.Get(ctx, refreshPrefix+accountID).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache: get refresh: %w", err)
	}
	return val, nil
}

func (c *Cache) RotateRefresh(ctx context.Context, accountID, presented, next string, ttl time.Duration) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	status, err := rotateRefreshLua.Run(ctx, c.client,
		[]string{refreshPrefix + accountID},
		presented, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("cache: rotate refresh: %w", err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusMissing, rotateStatusMismatch:
		return cache.ErrRefreshStale
	default:
		return fmt.Errorf("cache: rotate refresh: unexpected status %d", status)
	}
}

func (c *Cache) DeleteRefresh(ctx context.Context, accountID string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Del(ctx, refreshPrefix+accountID).Err(); err != nil {
		return fmt.Errorf("cache: delete refresh: %w", err)
	}
	return nil
}

func (c *Cache) PutPendingTOTP(ctx context.Context, accountID, secret string, ttl time.Duration) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Set(ctx, totpSetupPrefix+accountID, secret, ttl).Err(); err != nil {
		return fmt.Errorf("cache: put pending totp: %w", err)
	}
	return nil
}

func (c *Cache) GetPendingTOTP(ctx context.Context, accountID string) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	val, err := c.client.Get(ctx, totpSetupPrefix+accountID).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache: get pending totp: %w", err)
	}
	return val, nil
}

func (c *Cache) DeletePendingTOTP(ctx context.Context, accountID string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Del(ctx, totpSetupPrefix+accountID).Err(); err != nil {
		return fmt.Errorf("cache: delete pending totp: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error { return c.client.Close() }
