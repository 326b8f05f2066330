package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"score_gate/internal/domain"
)

func TestMemoryRateLimitRepository_AcquireIsPerKey(t *testing.T) {
	repo := NewMemoryRateLimitRepository()

	held := repo.Acquire("a")
	defer held.Release()

	// A different key must not block while "a" is held.
	done := make(chan struct{})
	go func() {
		h := repo.Acquire("b")
		h.Record().RequestCount++
		h.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring an unrelated key blocked")
	}

	rec, ok := repo.Snapshot("b")
	require.True(t, ok)
	assert.Equal(t, 1, rec.RequestCount)
}

func TestMemoryRateLimitRepository_SerializesSameKey(t *testing.T) {
	repo := NewMemoryRateLimitRepository()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := repo.Acquire("k")
			h.Record().RequestCount++
			h.Release()
		}()
	}
	wg.Wait()

	rec, ok := repo.Snapshot("k")
	require.True(t, ok)
	assert.Equal(t, 200, rec.RequestCount)

	_, ok = repo.Snapshot("missing")
	assert.False(t, ok)
}

func TestMemoryCounterRepository_FixedWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	repo := &memoryCounterRepository{counters: map[string]*memoryCounter{}, now: func() time.Time { return now }}
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		allowed, count, err := repo.Hit(ctx, "ip", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, int64(i), count)
	}

	allowed, _, err := repo.Hit(ctx, "ip", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	now = now.Add(time.Minute)
	allowed, count, err := repo.Hit(ctx, "ip", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStatsRepository(t *testing.T) {
	repo := NewMemoryStatsRepository()
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, domain.StatsEvent{Reason: domain.ReasonOK}))
	require.NoError(t, repo.Record(ctx, domain.StatsEvent{Reason: domain.ReasonOK}))
	require.NoError(t, repo.Record(ctx, domain.StatsEvent{Reason: domain.ReasonSessionTooFresh}))

	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals["OK"])
	assert.Equal(t, int64(1), totals["SESSION_TOO_FRESH"])
}

func TestMemoryLeaderboardCache_Expires(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := &memoryLeaderboardCache{now: func() time.Time { return now }}
	ctx := context.Background()

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, &domain.Leaderboard{TotalPlayers: 3}, 10*time.Second))

	lb, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, lb.TotalPlayers)

	now = now.Add(10 * time.Second)
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
