package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"score_gate/internal/domain"
	"score_gate/internal/repository"
	"score_gate/pkg/logger"
)

// RateLimiter is one identity-keyed limiter (origin or wallet): a fixed-window
// request ceiling, an optional minimum spacing between admitted requests and
// an optional key→identity binding.
//
// Check never mutates state. Quota is spent only through Commit/CommitAll,
// which the admission controller calls once a submission is fully validated.
type RateLimiter struct {
	rule    domain.RateLimitRule
	repo    repository.RateLimitRepository
	reasons limiterReasons
}

type limiterReasons struct {
	exceeded    domain.ReasonCode
	tooFrequent domain.ReasonCode
	mismatch    domain.ReasonCode
}

func NewOriginLimiter(requests int, window, minSpacing time.Duration, repo repository.RateLimitRepository) *RateLimiter {
	return &RateLimiter{
		rule: domain.RateLimitRule{
			Scope:       domain.RateLimitScopeOrigin,
			MaxRequests: requests,
			Window:      window,
			MinSpacing:  minSpacing,
		},
		repo: repo,
		reasons: limiterReasons{
			exceeded:    domain.ReasonOriginRateExceeded,
			tooFrequent: domain.ReasonOriginTooFrequent,
		},
	}
}

func NewWalletLimiter(requests int, window, minSpacing time.Duration, repo repository.RateLimitRepository) *RateLimiter {
	return &RateLimiter{
		rule: domain.RateLimitRule{
			Scope:        domain.RateLimitScopeWallet,
			MaxRequests:  requests,
			Window:       window,
			MinSpacing:   minSpacing,
			BindIdentity: true,
		},
		repo: repo,
		reasons: limiterReasons{
			exceeded:    domain.ReasonWalletRateExceeded,
			tooFrequent: domain.ReasonWalletTooFrequent,
			mismatch:    domain.ReasonWalletIdentityMismatch,
		},
	}
}

func (l *RateLimiter) Rule() domain.RateLimitRule {
	return l.rule
}

// Check reports whether a request for key would be admitted at now.
func (l *RateLimiter) Check(key string, now time.Time, identity string) domain.Verdict {
	h := l.repo.Acquire(key)
	defer h.Release()
	return l.evaluate(h.Record(), now, identity)
}

// Commit re-checks and, if still admissible, spends one unit of quota for key.
func (l *RateLimiter) Commit(key string, now time.Time, identity string) domain.Verdict {
	return CommitAll(now, Reservation{Limiter: l, Key: key, Identity: identity})
}

// Reservation names one limiter key to be committed by CommitAll.
type Reservation struct {
	Limiter  *RateLimiter
	Key      string
	Identity string
}

// CommitAll commits every reservation or none. Keys are locked in argument
// order and held until all records are updated, so a concurrent request can
// never push a counter past its ceiling between check and commit. Callers
// must always pass limiters in the same order.
func CommitAll(now time.Time, reservations ...Reservation) domain.Verdict {
	handles := make([]repository.RecordHandle, 0, len(reservations))
	defer func() {
		for i := len(handles) - 1; i >= 0; i-- {
			handles[i].Release()
		}
	}()

	for _, r := range reservations {
		h := r.Limiter.repo.Acquire(r.Key)
		handles = append(handles, h)
		if v := r.Limiter.evaluate(h.Record(), now, r.Identity); !v.Valid {
			return v
		}
	}

	for i, r := range reservations {
		r.Limiter.apply(handles[i].Record(), now, r.Identity)
	}
	return domain.Accept()
}

func (l *RateLimiter) evaluate(rec *domain.RateLimitRecord, now time.Time, identity string) domain.Verdict {
	windowStart, count := rec.WindowStart, rec.RequestCount
	if l.windowExpired(rec, now) {
		windowStart, count = now, 0
	}
	windowLeft := windowStart.Add(l.rule.Window).Sub(now)

	if l.rule.BindIdentity && rec.BoundIdentity != "" && identity != rec.BoundIdentity {
		v := domain.Reject(l.reasons.mismatch, "This wallet is linked to a different account",
			fmt.Sprintf("%s key bound to %q, got %q", l.rule.Scope, rec.BoundIdentity, identity))
		v.RetryAfterSec = retryAfterSeconds(windowLeft)
		return v
	}

	if count >= l.rule.MaxRequests {
		v := domain.Reject(l.reasons.exceeded, "Too many score submissions, please wait before trying again",
			fmt.Sprintf("%s limit %d per %s reached", l.rule.Scope, l.rule.MaxRequests, l.rule.Window))
		v.RetryAfterSec = retryAfterSeconds(windowLeft)
		return v
	}

	if l.rule.MinSpacing > 0 && !rec.LastRequest.IsZero() {
		since := now.Sub(rec.LastRequest)
		if since < l.rule.MinSpacing {
			v := domain.Reject(l.reasons.tooFrequent, "Score submissions are too frequent, please slow down",
				fmt.Sprintf("%s spacing %s below minimum %s", l.rule.Scope, since, l.rule.MinSpacing))
			v.RetryAfterSec = retryAfterSeconds(l.rule.MinSpacing - since)
			return v
		}
	}

	return domain.Accept()
}

func (l *RateLimiter) apply(rec *domain.RateLimitRecord, now time.Time, identity string) {
	if l.windowExpired(rec, now) {
		rec.WindowStart = now
		rec.RequestCount = 0
	}
	rec.RequestCount++
	rec.LastRequest = now
	if l.rule.BindIdentity && rec.BoundIdentity == "" && identity != "" {
		rec.BoundIdentity = identity
	}
}

func (l *RateLimiter) windowExpired(rec *domain.RateLimitRecord, now time.Time) bool {
	return rec.WindowStart.IsZero() || now.Sub(rec.WindowStart) > l.rule.Window
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// RateLimitService guards auxiliary endpoints with a coarse per-IP counter.
type RateLimitService interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

type rateLimitService struct {
	counters repository.CounterRepository
	log      logger.Logger
}

func NewRateLimitService(counters repository.CounterRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		counters: counters,
		log:      log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	allowed, count, err := s.counters.Hit(ctx, key, limit, window)
	if err != nil {
		return false, 0, err
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, nil
}
