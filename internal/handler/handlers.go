package handler

import (
	"score_gate/internal/config"
	"score_gate/internal/service"
	"score_gate/pkg/logger"
)

type Handlers struct {
	Health      *HealthHandler
	Score       *ScoreHandler
	Leaderboard *LeaderboardHandler
	Auth        *AuthHandler
	Stats       *StatsHandler
}

func NewHandlers(services *service.Services, ledgerWritable func() bool, cfg *config.Config, log logger.Logger) *Handlers {
	handlers := &Handlers{
		Health:      NewHealthHandler(cfg, ledgerWritable),
		Score:       NewScoreHandler(services.Admission, log),
		Leaderboard: NewLeaderboardHandler(services.Leaderboard, log),
		Stats:       NewStatsHandler(services.Audit, log),
	}

	if cfg.Session.EnableMock {
		handlers.Auth = NewAuthHandler(services.Auth, log)
		log.Warn("Mock login enabled", "environment", cfg.Environment)
	}

	return handlers
}
