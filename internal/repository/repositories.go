package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"score_gate/pkg/logger"
)

type Repositories struct {
	OriginLimits     RateLimitRepository
	WalletLimits     RateLimitRepository
	AuxCounter       CounterRepository
	Audit            AuditRepository
	Stats            StatsRepository
	LeaderboardCache LeaderboardCache
}

// NewRepositories wires the stores. db and rdb are optional: without them the
// audit trail goes to the log and counters/caches stay in memory. Gate rate
// limit records are always process-local.
func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, redisPrefix string, statsTTL time.Duration, log logger.Logger) *Repositories {
	repos := &Repositories{
		OriginLimits: NewMemoryRateLimitRepository(),
		WalletLimits: NewMemoryRateLimitRepository(),
	}

	if db != nil {
		repos.Audit = NewAuditRepository(db, log)
		log.Info("Audit repository initialized", "backend", "postgres")
	} else {
		repos.Audit = NewLogAuditRepository(log)
		log.Warn("DATABASE_DSN not set, audit events go to the log only")
	}

	if rdb != nil {
		repos.AuxCounter = NewRedisCounterRepository(rdb, redisPrefix, log)
		repos.Stats = NewRedisStatsRepository(rdb, redisPrefix, statsTTL, log)
		repos.LeaderboardCache = NewRedisLeaderboardCache(rdb, redisPrefix, log)
		log.Info("Redis-backed counters, stats and cache initialized")
	} else {
		repos.AuxCounter = NewMemoryCounterRepository()
		repos.Stats = NewMemoryStatsRepository()
		repos.LeaderboardCache = NewMemoryLeaderboardCache()
		log.Warn("REDIS_ADDR not set, counters, stats and cache are process-local")
	}

	return repos
}
