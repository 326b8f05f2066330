package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"score_gate/internal/domain"
	"score_gate/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO gate_audit_log (event_id, event_time, request_id, origin, wallet, user_id,
		                            event_type, stage, reason, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		auditLog.EventID, auditLog.EventTime, auditLog.RequestID, auditLog.Origin,
		auditLog.Wallet, auditLog.UserID, auditLog.EventType, string(auditLog.Stage),
		string(auditLog.Reason), auditLog.Payload,
	).Scan(&auditLog.ID)

	if err != nil {
		r.log.Error("Failed to create audit log", "error", err)
		return err
	}

	return nil
}

// logAuditRepository writes audit events to the application log when no
// database is configured.
type logAuditRepository struct {
	log logger.Logger
}

func NewLogAuditRepository(log logger.Logger) AuditRepository {
	return &logAuditRepository{log: log}
}

func (r *logAuditRepository) CreateLog(_ context.Context, auditLog *domain.AuditLog) error {
	r.log.Info("audit",
		"event_id", auditLog.EventID.String(),
		"event_type", auditLog.EventType,
		"request_id", auditLog.RequestID,
		"origin", auditLog.Origin,
		"wallet", auditLog.Wallet,
		"user_id", auditLog.UserID,
		"stage", auditLog.Stage,
		"reason", auditLog.Reason,
		"payload", auditLog.Payload,
	)
	return nil
}
