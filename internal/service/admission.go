package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"score_gate/internal/domain"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/logger"
)

// LedgerSubmitter performs the single increment write against the ledger.
type LedgerSubmitter interface {
	IncrementPlayer(ctx context.Context, inc domain.LedgerIncrement) (*domain.LedgerReceipt, error)
	// Configured reports whether the submitter holds a signing key.
	Configured() bool
}

// AdmissionController runs a submission through session, origin rate,
// wallet rate and plausibility checks and forwards admitted submissions to
// the ledger. It always returns an Outcome and never panics past Submit.
type AdmissionController struct {
	sessions      *SessionValidator
	origin        *RateLimiter
	wallet        *RateLimiter
	plausibility  *PlausibilityValidator
	ledger        LedgerSubmitter
	audit         AuditService
	log           logger.Logger
	submitTimeout time.Duration
	now           func() time.Time

	inflight sync.WaitGroup
}

type AdmissionDeps struct {
	Sessions      *SessionValidator
	Origin        *RateLimiter
	Wallet        *RateLimiter
	Plausibility  *PlausibilityValidator
	Ledger        LedgerSubmitter
	Audit         AuditService
	SubmitTimeout time.Duration
}

func NewAdmissionController(deps AdmissionDeps, log logger.Logger) *AdmissionController {
	timeout := deps.SubmitTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AdmissionController{
		sessions:      deps.Sessions,
		origin:        deps.Origin,
		wallet:        deps.Wallet,
		plausibility:  deps.Plausibility,
		ledger:        deps.Ledger,
		audit:         deps.Audit,
		log:           log,
		submitTimeout: timeout,
		now:           time.Now,
	}
}

func (c *AdmissionController) Submit(ctx context.Context, sub *domain.Submission) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Panic during admission", "panic", fmt.Sprint(r), "request_id", sub.RequestID)
			out = domain.Outcome{
				State: domain.StateRejected,
				Stage: domain.StateAdmitted,
				Verdict: domain.Reject(domain.ReasonLedgerFailed, "Failed to submit score",
					fmt.Sprintf("panic: %v", r)),
			}
		}
	}()

	now := c.now()
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = now
	}
	walletKey := sub.WalletKey()
	var userID string
	if sub.Session != nil {
		userID = sub.Session.UserID
	}

	if v := c.sessions.Validate(sub.Session, now); !v.Valid {
		return c.reject(sub, domain.StateSessionChecked, v)
	}
	if v := c.origin.Check(sub.Origin, now, ""); !v.Valid {
		return c.reject(sub, domain.StateOriginRateChecked, v)
	}
	if v := c.wallet.Check(walletKey, now, userID); !v.Valid {
		return c.reject(sub, domain.StateWalletRateChecked, v)
	}
	v := c.plausibility.Validate(sub.ScoreIncrement, sub.DurationMs, sub.TxCountIncrement, sub.GameData, now)
	if !v.Valid {
		return c.reject(sub, domain.StatePlausibilityChecked, v)
	}

	// A server without a signing key cannot write; fail before spending quota.
	if c.ledger == nil || !c.ledger.Configured() {
		return c.reject(sub, domain.StateAdmitted, domain.Reject(domain.ReasonLedgerNotConfigured,
			"Server configuration error", "ledger signer not configured"))
	}

	// Counters may have moved since the checks above; CommitAll re-validates
	// under both key locks.
	v = CommitAll(now,
		Reservation{Limiter: c.origin, Key: sub.Origin},
		Reservation{Limiter: c.wallet, Key: walletKey, Identity: userID},
	)
	if !v.Valid {
		stage := domain.StateOriginRateChecked
		if v.Reason == domain.ReasonWalletRateExceeded || v.Reason == domain.ReasonWalletTooFrequent ||
			v.Reason == domain.ReasonWalletIdentityMismatch {
			stage = domain.StateWalletRateChecked
		}
		return c.reject(sub, stage, v)
	}

	c.log.Info("Submission admitted",
		"request_id", sub.RequestID,
		"origin", sub.Origin,
		"wallet", walletKey,
		"score", sub.ScoreIncrement,
		"tx_count", sub.TxCountIncrement,
		"elapsed", domain.FormatElapsed(sub.DurationMs),
	)
	c.audit.LogDecision(sub, domain.EventTypeSubmissionAdmitted, domain.StateAdmitted, domain.Accept(), c.payload(sub))

	return c.forward(ctx, sub)
}

type ledgerResult struct {
	receipt *domain.LedgerReceipt
	err     error
}

// forward runs the ledger write on a context detached from the client. If
// the client goes away first, the write keeps going and its result is only
// logged and audited.
func (c *AdmissionController) forward(ctx context.Context, sub *domain.Submission) domain.Outcome {
	inc := domain.LedgerIncrement{
		Player:           sub.PlayerAddress,
		ScoreIncrement:   sub.ScoreIncrement,
		TxCountIncrement: sub.TxCountIncrement,
	}

	results := make(chan ledgerResult, 1)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.submitTimeout)
		defer cancel()

		res := c.callLedger(writeCtx, inc)
		c.finish(sub, res)
		results <- res
	}()

	select {
	case res := <-results:
		return c.outcome(res)
	case <-ctx.Done():
		c.log.Warn("Client left before ledger confirmation, continuing in background",
			"request_id", sub.RequestID,
			"wallet", sub.WalletKey(),
		)
		return domain.Outcome{
			State:   domain.StateAdmitted,
			Stage:   domain.StateAdmitted,
			Verdict: domain.Accept(),
			Pending: true,
		}
	}
}

func (c *AdmissionController) callLedger(ctx context.Context, inc domain.LedgerIncrement) (res ledgerResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ledgerResult{err: fmt.Errorf("ledger submitter panic: %v", r)}
		}
	}()
	receipt, err := c.ledger.IncrementPlayer(ctx, inc)
	if err == nil && receipt == nil {
		err = errors.New("ledger returned no receipt")
	}
	return ledgerResult{receipt: receipt, err: err}
}

func (c *AdmissionController) finish(sub *domain.Submission, res ledgerResult) {
	payload := c.payload(sub)
	if res.err != nil {
		v := ledgerVerdict(res.err)
		c.log.Error("Ledger submission failed",
			"error", res.err,
			"request_id", sub.RequestID,
			"wallet", sub.WalletKey(),
			"reason", v.Reason,
		)
		c.audit.LogDecision(sub, domain.EventTypeLedgerFailed, domain.StateRejected, v, payload)
		return
	}

	payload["transaction_hash"] = res.receipt.TransactionHash
	payload["block_number"] = res.receipt.BlockNumber
	c.log.Info("Score submitted to ledger",
		"request_id", sub.RequestID,
		"wallet", sub.WalletKey(),
		"tx_hash", res.receipt.TransactionHash,
		"block", res.receipt.BlockNumber,
	)
	c.audit.LogDecision(sub, domain.EventTypeSubmissionSubmitted, domain.StateSubmitted, domain.Accept(), payload)
}

func (c *AdmissionController) outcome(res ledgerResult) domain.Outcome {
	if res.err != nil {
		return domain.Outcome{
			State:   domain.StateRejected,
			Stage:   domain.StateAdmitted,
			Verdict: ledgerVerdict(res.err),
		}
	}
	return domain.Outcome{
		State:   domain.StateSubmitted,
		Stage:   domain.StateSubmitted,
		Verdict: domain.Accept(),
		Receipt: res.receipt,
	}
}

func ledgerVerdict(err error) domain.Verdict {
	switch {
	case errors.Is(err, apperrors.ErrLedgerOperator):
		return domain.Reject(domain.ReasonLedgerInsufficientFunds, "Server wallet insufficient funds", err.Error())
	case errors.Is(err, apperrors.ErrLedgerTransient), errors.Is(err, context.DeadlineExceeded):
		return domain.Reject(domain.ReasonLedgerNetwork, "Blockchain network error", err.Error())
	case errors.Is(err, apperrors.ErrConfig):
		return domain.Reject(domain.ReasonLedgerNotConfigured, "Server configuration error", err.Error())
	default:
		return domain.Reject(domain.ReasonLedgerFailed, "Failed to submit score", err.Error())
	}
}

func (c *AdmissionController) reject(sub *domain.Submission, stage domain.State, v domain.Verdict) domain.Outcome {
	c.log.Warn("Submission rejected",
		"request_id", sub.RequestID,
		"origin", sub.Origin,
		"wallet", sub.WalletKey(),
		"stage", stage,
		"reason", v.Reason,
		"detail", v.Detail,
	)
	c.audit.LogDecision(sub, domain.EventTypeSubmissionRejected, stage, v, c.payload(sub))
	return domain.Outcome{State: domain.StateRejected, Stage: stage, Verdict: v}
}

func (c *AdmissionController) payload(sub *domain.Submission) map[string]interface{} {
	return map[string]interface{}{
		"player":      sub.PlayerAddress,
		"score":       sub.ScoreIncrement,
		"tx_count":    sub.TxCountIncrement,
		"duration_ms": sub.DurationMs,
	}
}

// Drain waits for ledger writes still running in the background.
func (c *AdmissionController) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
