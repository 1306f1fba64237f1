package purchasing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockStatsRepo struct {
	calls int
	stats Stats
}

func (m *mockStatsRepo) Aggregate(ctx context.Context) (Stats, error) {
	m.calls++
	return m.stats, nil
}

func newTestStats(t *testing.T, repo StatsPort) (*StatsService, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatsService(repo, client, time.Minute, slog.Default()), client
}

func TestStatsOverviewCaches(t *testing.T) {
	repo := &mockStatsRepo{stats: Stats{
		TotalOrders:        3,
		ByStatus:           map[Status]int64{StatusDraft: 1, StatusApproved: 2},
		OutstandingBalance: dec("120.50"),
	}}
	svc, _ := newTestStats(t, repo)
	ctx := context.Background()

	stats, err := svc.Overview(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalOrders)
	require.Equal(t, int64(2), stats.ByStatus[StatusApproved])
	require.True(t, stats.OutstandingBalance.Equal(dec("120.50")))
	require.Equal(t, 1, repo.calls)

	// Second call is served from cache.
	_, err = svc.Overview(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	// Invalidation forces a reload.
	svc.Invalidate(ctx)
	repo.stats.TotalOrders = 4
	stats, err = svc.Overview(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.TotalOrders)
	require.Equal(t, 2, repo.calls)
}

func TestStatsOverviewWithoutCache(t *testing.T) {
	repo := &mockStatsRepo{stats: Stats{TotalOrders: 1, ByStatus: map[Status]int64{StatusDraft: 1}}}
	svc := NewStatsService(repo, nil, time.Minute, slog.Default())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		stats, err := svc.Overview(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), stats.TotalOrders)
	}
	require.Equal(t, 2, repo.calls)
}
