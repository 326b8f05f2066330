package domain

import (
	"fmt"
	"net/http"

	apperrors "score_gate/pkg/errors"
)

type ReasonCode string

const (
	ReasonOK ReasonCode = "OK"

	ReasonInvalidRequest ReasonCode = "INVALID_REQUEST"

	ReasonSessionMissing          ReasonCode = "SESSION_MISSING"
	ReasonSessionMalformed        ReasonCode = "SESSION_MALFORMED"
	ReasonSessionTooFresh         ReasonCode = "SESSION_TOO_FRESH"
	ReasonSessionStale            ReasonCode = "SESSION_STALE"
	ReasonSessionSignatureInvalid ReasonCode = "SESSION_SIGNATURE_INVALID"

	ReasonOriginRateExceeded     ReasonCode = "ORIGIN_RATE_EXCEEDED"
	ReasonOriginTooFrequent      ReasonCode = "ORIGIN_TOO_FREQUENT"
	ReasonWalletRateExceeded     ReasonCode = "WALLET_RATE_EXCEEDED"
	ReasonWalletTooFrequent      ReasonCode = "WALLET_TOO_FREQUENT"
	ReasonWalletIdentityMismatch ReasonCode = "WALLET_IDENTITY_MISMATCH"

	ReasonScoreOutOfRange      ReasonCode = "SCORE_OUT_OF_RANGE"
	ReasonDurationOutOfRange   ReasonCode = "DURATION_OUT_OF_RANGE"
	ReasonScoreRateTooHigh     ReasonCode = "SCORE_RATE_TOO_HIGH"
	ReasonScoreFormulaMismatch ReasonCode = "SCORE_FORMULA_MISMATCH"
	ReasonTxCountOutOfRange    ReasonCode = "TX_COUNT_OUT_OF_RANGE"
	ReasonVictoryFlagMissing   ReasonCode = "VICTORY_FLAG_MISSING"
	ReasonTimestampSkew        ReasonCode = "PAYLOAD_TIMESTAMP_SKEW"

	ReasonLedgerNotConfigured     ReasonCode = "LEDGER_NOT_CONFIGURED"
	ReasonLedgerInsufficientFunds ReasonCode = "INSUFFICIENT_FUNDS"
	ReasonLedgerNetwork           ReasonCode = "NETWORK_ERROR"
	ReasonLedgerFailed            ReasonCode = "LEDGER_FAILED"
)

// Err maps a reason onto the error taxonomy. ReasonOK has no error.
func (r ReasonCode) Err() error {
	switch r {
	case ReasonOK:
		return nil
	case ReasonInvalidRequest:
		return apperrors.ErrBadRequest
	case ReasonSessionMissing, ReasonSessionMalformed, ReasonSessionTooFresh,
		ReasonSessionStale, ReasonSessionSignatureInvalid:
		return apperrors.ErrAuthentication
	case ReasonOriginRateExceeded, ReasonOriginTooFrequent, ReasonWalletRateExceeded,
		ReasonWalletTooFrequent, ReasonWalletIdentityMismatch:
		return apperrors.ErrRateLimited
	case ReasonLedgerNotConfigured:
		return apperrors.ErrConfig
	case ReasonLedgerInsufficientFunds:
		return apperrors.ErrLedgerOperator
	case ReasonLedgerNetwork:
		return apperrors.ErrLedgerTransient
	case ReasonLedgerFailed:
		return apperrors.ErrLedger
	default:
		return apperrors.ErrImplausible
	}
}

// StatusClass maps a reason to its HTTP-equivalent status.
func (r ReasonCode) StatusClass() int {
	return apperrors.HTTPStatusFromError(r.Err())
}

// Verdict is the uniform result of every validation stage. Detail holds the
// exact figures for audit logs; Message is safe to show to the client.
type Verdict struct {
	Valid         bool       `json:"valid"`
	Reason        ReasonCode `json:"reason"`
	Detail        string     `json:"detail,omitempty"`
	Message       string     `json:"message,omitempty"`
	RetryAfterSec int        `json:"retry_after,omitempty"`
}

func Accept() Verdict {
	return Verdict{Valid: true, Reason: ReasonOK}
}

func Reject(reason ReasonCode, message, detail string) Verdict {
	return Verdict{Valid: false, Reason: reason, Message: message, Detail: detail}
}

// Err returns nil for an accepted verdict, otherwise the reason's taxonomy
// error annotated with the reason code and detail.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	sentinel := v.Reason.Err()
	if sentinel == nil {
		return nil
	}
	if v.Detail == "" {
		return fmt.Errorf("%w: %s", sentinel, v.Reason)
	}
	return fmt.Errorf("%w: %s: %s", sentinel, v.Reason, v.Detail)
}

// State is a step of the admission state machine.
type State string

const (
	StateReceived            State = "RECEIVED"
	StateSessionChecked      State = "SESSION_CHECKED"
	StateOriginRateChecked   State = "ORIGIN_RATE_CHECKED"
	StateWalletRateChecked   State = "WALLET_RATE_CHECKED"
	StatePlausibilityChecked State = "PLAUSIBILITY_CHECKED"
	StateAdmitted            State = "ADMITTED"
	StateSubmitted           State = "SUBMITTED"
	StateRejected            State = "REJECTED"
)

// Outcome is what the admission controller hands back to the transport layer.
type Outcome struct {
	State   State
	Verdict Verdict
	// Stage is the last stage reached; for rejections it is the failing one.
	Stage   State
	Receipt *LedgerReceipt
	// Pending is set when the client went away before the ledger answered;
	// the write keeps running in the background.
	Pending bool
}

// Err is nil for submitted or pending outcomes, otherwise the rejection as
// an error from the taxonomy.
func (o Outcome) Err() error {
	if o.State == StateSubmitted || o.Pending {
		return nil
	}
	return o.Verdict.Err()
}

func (o Outcome) Status() int {
	if o.Pending {
		return http.StatusAccepted
	}
	return apperrors.HTTPStatusFromError(o.Err())
}
