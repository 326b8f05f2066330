package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Gate.MinSessionAge)
	assert.Equal(t, 24*time.Hour, cfg.Gate.MaxSessionAge)
	assert.Equal(t, int64(10000), cfg.Gate.MaxScore)
	assert.Equal(t, 5*time.Second, cfg.Gate.MinDuration)
	assert.Equal(t, 5*time.Minute, cfg.Gate.MaxDuration)
	assert.Equal(t, 1000.0, cfg.Gate.MaxScoreRate)
	assert.Equal(t, int64(10), cfg.Gate.MaxTxPerSubmission)
	assert.Equal(t, []string{"boss_clear"}, cfg.Gate.VictoryKinds)

	assert.Equal(t, 3, cfg.RateLimit.Origin.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Origin.Window)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Origin.MinSpacing)
	assert.Equal(t, 5, cfg.RateLimit.Wallet.Requests)
	assert.Greater(t, cfg.RateLimit.Wallet.Requests, cfg.RateLimit.Origin.Requests)

	assert.True(t, cfg.Session.EnableMock)
	assert.True(t, cfg.Gate.ExposeValidationDetails)
}

func TestLoad_ProductionHidesDetails(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Gate.ExposeValidationDetails)
	assert.False(t, cfg.Session.EnableMock)
}

func TestLoad_RejectsMockAuthInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ENABLE_MOCK_AUTH", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RequireSignedNeedsSecret(t *testing.T) {
	t.Setenv("REQUIRE_SIGNED_SESSION", "true")
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ORIGIN_RATE_LIMIT", "7")
	t.Setenv("WALLET_RATE_WINDOW", "2m")
	t.Setenv("VICTORY_KINDS", "boss_clear, arena_clear")
	t.Setenv("MAX_SCORE_RATE", "250.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimit.Origin.Requests)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Wallet.Window)
	assert.Equal(t, []string{"boss_clear", "arena_clear"}, cfg.Gate.VictoryKinds)
	assert.Equal(t, 250.5, cfg.Gate.MaxScoreRate)
}
