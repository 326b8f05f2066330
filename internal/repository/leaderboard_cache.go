package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"score_gate/internal/domain"
	"score_gate/pkg/logger"
)

// LeaderboardCache keeps the last computed leaderboard so that reads do not
// enumerate the ledger on every request.
type LeaderboardCache interface {
	Get(ctx context.Context) (*domain.Leaderboard, bool, error)
	Set(ctx context.Context, lb *domain.Leaderboard, ttl time.Duration) error
}

type redisLeaderboardCache struct {
	rdb *redis.Client
	key string
	log logger.Logger
}

func NewRedisLeaderboardCache(rdb *redis.Client, prefix string, log logger.Logger) LeaderboardCache {
	return &redisLeaderboardCache{rdb: rdb, key: prefix + ":leaderboard", log: log}
}

func (c *redisLeaderboardCache) Get(ctx context.Context) (*domain.Leaderboard, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.log.Warn("Failed to read leaderboard cache", "error", err)
		return nil, false, err
	}

	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached leaderboard: %w", err)
	}
	return &lb, true, nil
}

func (c *redisLeaderboardCache) Set(ctx context.Context, lb *domain.Leaderboard, ttl time.Duration) error {
	raw, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	return c.rdb.Set(ctx, c.key, raw, ttl).Err()
}

type memoryLeaderboardCache struct {
	mu      sync.Mutex
	value   *domain.Leaderboard
	expires time.Time
	now     func() time.Time
}

func NewMemoryLeaderboardCache() LeaderboardCache {
	return &memoryLeaderboardCache{now: time.Now}
}

func (c *memoryLeaderboardCache) Get(_ context.Context) (*domain.Leaderboard, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil || !c.now().Before(c.expires) {
		return nil, false, nil
	}
	lb := *c.value
	return &lb, true, nil
}

func (c *memoryLeaderboardCache) Set(_ context.Context, lb *domain.Leaderboard, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *lb
	c.value = &cp
	c.expires = c.now().Add(ttl)
	return nil
}
