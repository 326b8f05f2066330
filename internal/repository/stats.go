package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"score_gate/internal/domain"
	"score_gate/pkg/logger"
)

// StatsRepository counts admission decisions by reason code.
type StatsRepository interface {
	Record(ctx context.Context, ev domain.StatsEvent) error
	Totals(ctx context.Context) (map[string]int64, error)
}

type redisStatsRepository struct {
	rdb    *redis.Client
	prefix string
	// ttl applies to the per-minute buckets only; totals never expire.
	ttl time.Duration
	log logger.Logger
}

func NewRedisStatsRepository(rdb *redis.Client, prefix string, ttl time.Duration, log logger.Logger) StatsRepository {
	return &redisStatsRepository{
		rdb:    rdb,
		prefix: strings.Trim(prefix, ":") + ":stats",
		ttl:    ttl,
		log:    log,
	}
}

func (r *redisStatsRepository) Record(ctx context.Context, ev domain.StatsEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Reason)

	totalKey := r.prefix + ":total"
	bucketKey := fmt.Sprintf("%s:minute:%s", r.prefix, at.UTC().Format("200601021504"))

	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, field, 1)
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if r.ttl > 0 {
		pipe.Expire(ctx, bucketKey, r.ttl)
	}
	if ev.Stage != "" {
		pipe.HIncrBy(ctx, r.prefix+":stage", string(ev.Stage), 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("Failed to record gate stats", "error", err)
		return err
	}
	return nil
}

func (r *redisStatsRepository) Totals(ctx context.Context) (map[string]int64, error) {
	raw, err := r.rdb.HGetAll(ctx, r.prefix+":total").Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			out[k] = n
		}
	}
	return out, nil
}

type memoryStatsRepository struct {
	mu       sync.Mutex
	byReason map[string]int64
}

func NewMemoryStatsRepository() StatsRepository {
	return &memoryStatsRepository{byReason: make(map[string]int64)}
}

func (r *memoryStatsRepository) Record(_ context.Context, ev domain.StatsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byReason[string(ev.Reason)]++
	return nil
}

func (r *memoryStatsRepository) Totals(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.byReason))
	for k, v := range r.byReason {
		out[k] = v
	}
	return out, nil
}
