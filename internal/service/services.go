package service

import (
	"score_gate/internal/config"
	"score_gate/internal/repository"
	"score_gate/pkg/logger"
)

// Ledger is the full ledger adapter: the write path for admission and the
// read path for the leaderboard.
type Ledger interface {
	LedgerSubmitter
	LedgerReader
}

type Services struct {
	Auth        AuthService
	Admission   *AdmissionController
	Leaderboard LeaderboardService
	RateLimit   RateLimitService
	Audit       AuditService
}

func NewServices(repos *repository.Repositories, ledger Ledger, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, repos.Stats, log)

	admission := NewAdmissionController(AdmissionDeps{
		Sessions: NewSessionValidator(cfg.Gate, cfg.Session),
		Origin: NewOriginLimiter(cfg.RateLimit.Origin.Requests, cfg.RateLimit.Origin.Window,
			cfg.RateLimit.Origin.MinSpacing, repos.OriginLimits),
		Wallet: NewWalletLimiter(cfg.RateLimit.Wallet.Requests, cfg.RateLimit.Wallet.Window,
			cfg.RateLimit.Wallet.MinSpacing, repos.WalletLimits),
		Plausibility:  NewPlausibilityValidator(cfg.Gate),
		Ledger:        ledger,
		Audit:         audit,
		SubmitTimeout: cfg.Ledger.SubmitTimeout,
	}, log)

	return &Services{
		Auth:        NewAuthService(cfg.Session, log),
		Admission:   admission,
		Leaderboard: NewLeaderboardService(ledger, repos.LeaderboardCache, cfg.Ledger, log),
		RateLimit:   NewRateLimitService(repos.AuxCounter, log),
		Audit:       audit,
	}
}
