package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/pkg/idx"
)

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	svc, account, org := newAPIKeyService(t)
	st := svc.Store

	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	_, err := svc.Issue(ctx, account.ID, org.ID, "stale", nil, &past)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, account.ID, org.ID, "live", nil, nil)
	require.NoError(t, err)

	require.NoError(t, st.SessionLogs().Create(ctx, domain.SessionLog{
		ID:        idx.New().String(),
		AccountID: &account.ID,
		Action:    domain.ActionLogin,
		CreatedAt: now.Add(-100 * 24 * time.Hour),
	}))
	require.NoError(t, st.SessionLogs().Create(ctx, domain.SessionLog{
		ID:        idx.New().String(),
		AccountID: &account.ID,
		Action:    domain.ActionLogin,
		CreatedAt: now,
	}))

	hk := NewHousekeepingService(st, slog.Default(), time.Hour, 90*24*time.Hour)
	hk.cleanup()

	keys, err := svc.List(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "live", keys[0].Name)

	n, err := st.SessionLogs().CountByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestHousekeepingStartStop(t *testing.T) {
	st := newTestStore(t)
	hk := NewHousekeepingService(st, slog.Default(), 50*time.Millisecond, time.Hour)

	hk.Start()
	time.Sleep(75 * time.Millisecond)
	hk.Stop()
}
