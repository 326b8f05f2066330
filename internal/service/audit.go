package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"score_gate/internal/domain"
	"score_gate/internal/repository"
	"score_gate/pkg/logger"
)

// AuditService records every admission decision to the audit store and the
// reason-code counters. Writes happen on a background worker so that a slow
// database or redis never holds up a submission.
type AuditService interface {
	LogDecision(sub *domain.Submission, eventType string, stage domain.State, verdict domain.Verdict, payload map[string]interface{})
	Totals(ctx context.Context) (map[string]int64, error)
	Close(ctx context.Context) error
}

type auditJob struct {
	entry *domain.AuditLog
	stats domain.StatsEvent
}

type auditService struct {
	auditRepo repository.AuditRepository
	statsRepo repository.StatsRepository
	log       logger.Logger

	jobs      chan auditJob
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

const (
	auditQueueSize    = 1024
	auditWriteTimeout = 5 * time.Second
)

func NewAuditService(auditRepo repository.AuditRepository, statsRepo repository.StatsRepository, log logger.Logger) AuditService {
	s := &auditService{
		auditRepo: auditRepo,
		statsRepo: statsRepo,
		log:       log,
		jobs:      make(chan auditJob, auditQueueSize),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *auditService) LogDecision(sub *domain.Submission, eventType string, stage domain.State, verdict domain.Verdict, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	if verdict.Detail != "" {
		payload["detail"] = verdict.Detail
	}

	now := time.Now()
	entry := &domain.AuditLog{
		EventID:   uuid.New(),
		EventTime: now,
		EventType: eventType,
		Stage:     stage,
		Reason:    verdict.Reason,
		Payload:   payload,
	}
	if sub != nil {
		entry.RequestID = sub.RequestID
		entry.Origin = sub.Origin
		entry.Wallet = sub.WalletKey()
		if sub.Session != nil {
			entry.UserID = sub.Session.UserID
		}
	}

	job := auditJob{
		entry: entry,
		stats: domain.StatsEvent{Reason: verdict.Reason, Stage: stage, At: now},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.jobs <- job:
	default:
		s.log.Warn("Audit queue full, dropping event",
			"event_type", eventType,
			"reason", verdict.Reason,
			"request_id", entry.RequestID,
		)
	}
}

func (s *auditService) Totals(ctx context.Context) (map[string]int64, error) {
	return s.statsRepo.Totals(ctx)
}

// Close stops accepting events and waits for the queue to drain.
func (s *auditService) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.jobs)
		s.mu.Unlock()
	})

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *auditService) run() {
	defer close(s.done)
	for job := range s.jobs {
		s.write(job)
	}
}

func (s *auditService) write(job auditJob) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := s.auditRepo.CreateLog(ctx, job.entry); err != nil {
		s.log.Error("Failed to write audit event",
			"error", err,
			"event_id", job.entry.EventID.String(),
			"event_type", job.entry.EventType,
		)
	}
	if err := s.statsRepo.Record(ctx, job.stats); err != nil {
		s.log.Warn("Failed to record decision stats", "error", err, "reason", job.stats.Reason)
	}
}
