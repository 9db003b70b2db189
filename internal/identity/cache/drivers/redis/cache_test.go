package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iris-platform/identity/internal/identity/cache"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, time.Second)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestBlacklistAccess(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	revoked, err := c.IsAccessBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, c.BlacklistAccess(ctx, "tok-1", time.Minute))

	revoked, err = c.IsAccessBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// The entry lapses with its TTL.
	mr.FastForward(2 * time.Minute)
	revoked, err = c.IsAccessBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestBlacklistExpiredTokenIsNoop(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.BlacklistAccess(ctx, "tok-1", -time.Second))
	require.False(t, mr.Exists("blacklist:tok-1"))
}

func TestRefreshSingleSlot(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, err := c.GetRefresh(ctx, "acct-1")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.PutRefresh(ctx, "acct-1", "refresh-a", time.Hour))

	got, err := c.GetRefresh(ctx, "acct-1")
	require.NoError(t, err)
	require.Equal(t, "refresh-a", got)

	// Issuing a new token overwrites the previous one.
	require.NoError(t, c.PutRefresh(ctx, "acct-1", "refresh-b", time.Hour))
	got, err = c.GetRefresh(ctx, "acct-1")
	require.NoError(t, err)
	require.Equal(t, "refresh-b", got)
}

func TestRotateRefresh(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	t.Run("missing slot is stale", func(t *testing.T) {
		err := c.RotateRefresh(ctx, "acct-1", "refresh-a", "refresh-b", time.Hour)
		require.ErrorIs(t, err, cache.ErrRefreshStale)
	})

	t.Run("successful rotation swaps the slot", func(t *testing.T) {
		require.NoError(t, c.PutRefresh(ctx, "acct-2", "refresh-a", time.Hour))
		require.NoError(t, c.RotateRefresh(ctx, "acct-2", "refresh-a", "refresh-b", time.Hour))

		got, err := c.GetRefresh(ctx, "acct-2")
		require.NoError(t, err)
		require.Equal(t, "refresh-b", got)
	})

	t.Run("replay of rotated token is stale and leaves slot intact", func(t *testing.T) {
		require.NoError(t, c.PutRefresh(ctx, "acct-3", "refresh-a", time.Hour))
		require.NoError(t, c.RotateRefresh(ctx, "acct-3", "refresh-a", "refresh-b", time.Hour))

		err := c.RotateRefresh(ctx, "acct-3", "refresh-a", "refresh-c", time.Hour)
		require.ErrorIs(t, err, cache.ErrRefreshStale)

		got, err := c.GetRefresh(ctx, "acct-3")
		require.NoError(t, err)
		require.Equal(t, "refresh-b", got)
	})
}

func TestRotateRefreshConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.PutRefresh(ctx, "acct-1", "refresh-a", time.Hour))

	const racers = 16
	var wg sync.WaitGroup
	results := make([]error, racers)

	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := "refresh-next-" + string(rune('a'+i))
			results[i] = c.RotateRefresh(ctx, "acct-1", "refresh-a", next, time.Hour)
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, cache.ErrRefreshStale)
		}
	}
	require.Equal(t, 1, wins, "exactly one rotation may succeed")
}

func TestDeleteRefresh(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.PutRefresh(ctx, "acct-1", "refresh-a", time.Hour))
	require.NoError(t, c.DeleteRefresh(ctx, "acct-1"))

	err := c.RotateRefresh(ctx, "acct-1", "refresh-a", "refresh-b", time.Hour)
	require.ErrorIs(t, err, cache.ErrRefreshStale)
}

func TestPendingTOTPExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.PutPendingTOTP(ctx, "acct-1", "JBSWY3DPEHPK3PXP", 5*time.Minute))

	secret, err := c.GetPendingTOTP(ctx, "acct-1")
	require.NoError(t, err)
	require.Equal(t, "JBSWY3DPEHPK3PXP", secret)

	mr.FastForward(6 * time.Minute)
	_, err = c.GetPendingTOTP(ctx, "acct-1")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.PutPendingTOTP(ctx, "acct-1", "SECRET2", 5*time.Minute))
	require.NoError(t, c.DeletePendingTOTP(ctx, "acct-1"))
	_, err = c.GetPendingTOTP(ctx, "acct-1")
	require.ErrorIs(t, err, cache.ErrNotFound)
}
