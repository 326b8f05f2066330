package repository

import (
	"sync"

	"score_gate/internal/domain"
)

// RateLimitRepository holds the per-key records of one limiter. Records live
// for the life of the process; expiry is logical (window reset on access).
type RateLimitRepository interface {
	// Acquire locks the record for key, creating an empty one on first use.
	// The caller must call Release on the returned handle exactly once.
	Acquire(key string) RecordHandle
	// Snapshot returns a copy of the record without holding its lock afterwards.
	Snapshot(key string) (domain.RateLimitRecord, bool)
}

// RecordHandle is a locked record. Mutations through Record are visible to
// the next Acquire of the same key.
type RecordHandle interface {
	Record() *domain.RateLimitRecord
	Release()
}

type lockedRecord struct {
	mu  sync.Mutex
	rec domain.RateLimitRecord
}

func (l *lockedRecord) Record() *domain.RateLimitRecord { return &l.rec }
func (l *lockedRecord) Release()                        { l.mu.Unlock() }

type memoryRateLimitRepository struct {
	records sync.Map // string -> *lockedRecord
}

// NewMemoryRateLimitRepository returns a process-local store with one mutex
// per key, so unrelated keys never wait on each other.
func NewMemoryRateLimitRepository() RateLimitRepository {
	return &memoryRateLimitRepository{}
}

func (r *memoryRateLimitRepository) Acquire(key string) RecordHandle {
	v, _ := r.records.LoadOrStore(key, &lockedRecord{})
	l := v.(*lockedRecord)
	l.mu.Lock()
	return l
}

func (r *memoryRateLimitRepository) Snapshot(key string) (domain.RateLimitRecord, bool) {
	v, ok := r.records.Load(key)
	if !ok {
		return domain.RateLimitRecord{}, false
	}
	l := v.(*lockedRecord)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec, true
}
