package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"score_gate/internal/config"
	"score_gate/internal/domain"
)

type fakeLedger struct {
	mu         sync.Mutex
	calls      []domain.LedgerIncrement
	err        error
	block      chan struct{}
	configured bool

	totals       map[string]domain.PlayerTotals
	index        []string
	countErr     error
	eventPlayers []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{configured: true, totals: map[string]domain.PlayerTotals{}}
}

func (f *fakeLedger) IncrementPlayer(ctx context.Context, inc domain.LedgerIncrement) (*domain.LedgerReceipt, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inc)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.LedgerReceipt{TransactionHash: fmt.Sprintf("0x%064x", len(f.calls)), BlockNumber: 100}, nil
}

func (f *fakeLedger) Configured() bool { return f.configured }

func (f *fakeLedger) Calls() []domain.LedgerIncrement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LedgerIncrement(nil), f.calls...)
}

func (f *fakeLedger) PlayerCount(context.Context) (uint64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return uint64(len(f.index)), nil
}

func (f *fakeLedger) PlayerAt(_ context.Context, i uint64) (string, error) {
	if i >= uint64(len(f.index)) {
		return "", fmt.Errorf("index %d out of range", i)
	}
	return f.index[i], nil
}

func (f *fakeLedger) PlayerTotals(_ context.Context, player string) (*domain.PlayerTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.totals[strings.ToLower(player)]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return &t, nil
}

func (f *fakeLedger) UpdatedPlayers(context.Context, uint64) ([]string, error) {
	return f.eventPlayers, nil
}

func (f *fakeLedger) ContractAddress() string { return "0xceCBFF203C8B6044F52CE23D914A1bfD997541A4" }

func (f *fakeLedger) setTotals(addr string, score, tx int64) {
	f.totals[strings.ToLower(addr)] = domain.PlayerTotals{Address: addr, Score: score, TransactionCount: tx}
}

type recordedDecision struct {
	EventType string
	Stage     domain.State
	Verdict   domain.Verdict
}

type fakeAudit struct {
	mu        sync.Mutex
	decisions []recordedDecision
}

func (a *fakeAudit) LogDecision(_ *domain.Submission, eventType string, stage domain.State, v domain.Verdict, _ map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisions = append(a.decisions, recordedDecision{EventType: eventType, Stage: stage, Verdict: v})
}

func (a *fakeAudit) Totals(context.Context) (map[string]int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := map[string]int64{}
	for _, d := range a.decisions {
		out[string(d.Verdict.Reason)]++
	}
	return out, nil
}

func (a *fakeAudit) Close(context.Context) error { return nil }

func (a *fakeAudit) Decisions() []recordedDecision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]recordedDecision(nil), a.decisions...)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Gate: config.GateConfig{
			MinSessionAge:      30 * time.Second,
			MaxSessionAge:      24 * time.Hour,
			MaxScore:           10000,
			MinDuration:        5 * time.Second,
			MaxDuration:        5 * time.Minute,
			MaxScoreRate:       1000,
			MaxTxPerSubmission: 10,
			MaxTimestampSkew:   5 * time.Minute,
			VictoryKinds:       []string{"boss_clear"},
		},
		RateLimit: config.RateLimitConfig{
			Origin: config.RateLimitRuleConfig{Requests: 3, Window: time.Minute, MinSpacing: 10 * time.Second},
			Wallet: config.RateLimitRuleConfig{Requests: 5, Window: time.Minute},
		},
		Ledger: config.LedgerConfig{
			SubmitTimeout:   time.Second,
			LeaderboardSize: 50,
			MaxScanPlayers:  100,
			LookbackBlocks:  1000,
			LeaderboardTTL:  15 * time.Second,
		},
		Session: config.SessionConfig{
			Issuer:     "score-gate",
			TTL:        24 * time.Hour,
			EnableMock: true,
		},
	}
}

func epoch(t time.Time) *domain.EpochMillis {
	m := domain.EpochMillis(t.UnixMilli())
	return &m
}

func validSession(loginAt time.Time) *domain.SessionRef {
	return &domain.SessionRef{
		UserID:    "user-1",
		Username:  "hero",
		Provider:  "privy",
		LoginTime: epoch(loginAt),
	}
}
