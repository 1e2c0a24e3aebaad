package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.GetReconciliation(ctx)
	require.False(t, ok)

	rows := []ReconciliationRow{
		{ItemCode: "CU-8MM", LedgerPcs: 60, DriftPcs: 0},
		{ItemCode: "AL-5MM", LedgerPcs: 10, DriftPcs: 2},
	}
	cache.SetReconciliation(ctx, rows)

	got, ok := cache.GetReconciliation(ctx)
	require.True(t, ok)
	require.Len(t, got, 2)
	require.Equal(t, "CU-8MM", got[0].ItemCode)
	require.EqualValues(t, 2, got[1].DriftPcs)
}

func TestCacheInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.SetReconciliation(ctx, []ReconciliationRow{{ItemCode: "CU-8MM"}})
	cache.Invalidate(ctx)

	_, ok := cache.GetReconciliation(ctx)
	require.False(t, ok)
}

func TestCacheNilClientIsSafe(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	cache.SetReconciliation(ctx, nil)
	cache.Invalidate(ctx)
	_, ok := cache.GetReconciliation(ctx)
	require.False(t, ok)
}
