package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID        int64                  `json:"id"`
	EventID   uuid.UUID              `json:"event_id"`
	EventTime time.Time              `json:"event_time"`
	RequestID string                 `json:"request_id,omitempty"`
	Origin    string                 `json:"origin"`
	Wallet    string                 `json:"wallet"`
	UserID    string                 `json:"user_id,omitempty"`
	EventType string                 `json:"event_type"`
	Stage     State                  `json:"stage"`
	Reason    ReasonCode             `json:"reason"`
	Payload   map[string]interface{} `json:"payload"`
}

const (
	EventTypeSubmissionRejected  = "SUBMISSION_REJECTED"
	EventTypeSubmissionAdmitted  = "SUBMISSION_ADMITTED"
	EventTypeSubmissionSubmitted = "SUBMISSION_SUBMITTED"
	EventTypeLedgerFailed        = "LEDGER_FAILED"
)

// StatsEvent is one admission decision counted by the stats store.
type StatsEvent struct {
	Reason ReasonCode
	Stage  State
	At     time.Time
}
