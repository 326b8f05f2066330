package service

import (
	"fmt"
	"time"

	"score_gate/internal/config"
	"score_gate/internal/domain"
)

// PlausibilityValidator rejects score reports that could not come out of a
// real play session. Checks run in a fixed order and the first failure wins.
type PlausibilityValidator struct {
	maxScore      int64
	minDuration   time.Duration
	maxDuration   time.Duration
	maxScoreRate  float64
	maxTx         int64
	maxSkew       time.Duration
	victoryKinds  map[string]struct{}
	tolerance     float64
	exposeDetails bool
}

func NewPlausibilityValidator(cfg config.GateConfig) *PlausibilityValidator {
	kinds := make(map[string]struct{}, len(cfg.VictoryKinds))
	for _, k := range cfg.VictoryKinds {
		kinds[k] = struct{}{}
	}
	return &PlausibilityValidator{
		maxScore:      cfg.MaxScore,
		minDuration:   cfg.MinDuration,
		maxDuration:   cfg.MaxDuration,
		maxScoreRate:  cfg.MaxScoreRate,
		maxTx:         cfg.MaxTxPerSubmission,
		maxSkew:       cfg.MaxTimestampSkew,
		victoryKinds:  kinds,
		tolerance:     cfg.ScoreFormulaTolerance,
		exposeDetails: cfg.ExposeValidationDetails,
	}
}

// Validate checks one submission. A non-positive durationMs means the client
// did not send a duration, which skips the duration-dependent checks.
func (v *PlausibilityValidator) Validate(score, durationMs, txCount int64, gameData domain.GameData, now time.Time) domain.Verdict {
	if score < 0 || score > v.maxScore {
		return v.reject(domain.ReasonScoreOutOfRange, "Invalid score",
			fmt.Sprintf("score %d outside [0, %d]", score, v.maxScore))
	}

	if durationMs > 0 {
		minMs, maxMs := v.minDuration.Milliseconds(), v.maxDuration.Milliseconds()
		if durationMs < minMs || durationMs > maxMs {
			return v.reject(domain.ReasonDurationOutOfRange, "Invalid game duration",
				fmt.Sprintf("duration %dms outside [%d, %d]", durationMs, minMs, maxMs))
		}

		rate := float64(score) / (float64(durationMs) / 1000)
		if rate > v.maxScoreRate {
			return v.reject(domain.ReasonScoreRateTooHigh, "Score rate too high",
				fmt.Sprintf("score rate %.2f points/s above %.2f", rate, v.maxScoreRate))
		}

		if v.tolerance > 0 {
			if ceiling := domain.ScoreCeiling(durationMs, v.tolerance); score > ceiling {
				return v.reject(domain.ReasonScoreFormulaMismatch, "Score does not match game duration",
					fmt.Sprintf("score %d above %d for %s", score, ceiling, domain.FormatElapsed(durationMs)))
			}
		}
	}

	if txCount < 0 || txCount > v.maxTx {
		return v.reject(domain.ReasonTxCountOutOfRange, "Invalid transaction count",
			fmt.Sprintf("tx count %d outside [0, %d]", txCount, v.maxTx))
	}

	if _, victory := v.victoryKinds[gameData.Kind()]; victory && !gameData.BossDefeated() {
		return v.reject(domain.ReasonVictoryFlagMissing, "Invalid game data",
			fmt.Sprintf("kind %q requires %s=true", gameData.Kind(), domain.GameDataBossDefeated))
	}

	if ts, ok := gameData.Timestamp(); ok && v.maxSkew > 0 {
		skew := now.Sub(time.UnixMilli(ts))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			return v.reject(domain.ReasonTimestampSkew, "Invalid game data",
				fmt.Sprintf("payload timestamp skew %s above %s", skew.Round(time.Millisecond), v.maxSkew))
		}
	}

	return domain.Accept()
}

func (v *PlausibilityValidator) reject(reason domain.ReasonCode, message, detail string) domain.Verdict {
	if v.exposeDetails {
		message = message + ": " + detail
	}
	return domain.Reject(reason, message, detail)
}
