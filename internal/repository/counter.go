package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"score_gate/pkg/logger"
)

// CounterRepository is a plain fixed-window request counter used to guard the
// auxiliary endpoints (leaderboard reads, mock login) per client IP.
type CounterRepository interface {
	// Hit counts one request for key and reports whether it is within limit.
	Hit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, count int64, err error)
}

type redisCounterRepository struct {
	redis  *redis.Client
	prefix string
	log    logger.Logger
}

func NewRedisCounterRepository(rdb *redis.Client, prefix string, log logger.Logger) CounterRepository {
	return &redisCounterRepository{redis: rdb, prefix: prefix, log: log}
}

func (r *redisCounterRepository) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error) {
	redisKey := r.prefix + ":aux:" + key

	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		r.log.Error("Failed to increment rate limit", "error", err)
		return false, 0, err
	}

	if count == 1 {
		if err := r.redis.Expire(ctx, redisKey, window).Err(); err != nil {
			r.log.Warn("Failed to set rate limit expiry", "key", redisKey, "error", err)
		}
	}

	return count <= int64(limit), count, nil
}

type memoryCounter struct {
	windowStart time.Time
	count       int64
}

type memoryCounterRepository struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

func NewMemoryCounterRepository() CounterRepository {
	return &memoryCounterRepository{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

func (r *memoryCounterRepository) Hit(_ context.Context, key string, limit int, window time.Duration) (bool, int64, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[key]
	if !ok || now.Sub(c.windowStart) >= window {
		c = &memoryCounter{windowStart: now}
		r.counters[key] = c
	}
	c.count++

	return c.count <= int64(limit), c.count, nil
}
