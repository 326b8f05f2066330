package domain

import (
	"fmt"
	"math"
)

// ScoreK is tuned so that a 15 second boss clear is worth 1000 points.
const ScoreK = 15_000_000

// PointsFromElapsed converts a clear time into points: floor(K / max(1, ms)).
// A non-positive elapsed time means no timer was running and scores 0.
func PointsFromElapsed(elapsedMs int64) int64 {
	if elapsedMs <= 0 {
		return 0
	}
	return ScoreK / max(1, elapsedMs)
}

// ScoreCeiling is the highest score accepted for durationMs when the
// formula band check is enabled: the formula value widened by tolerance
// (a fraction, 0.1 = 10%), rounded up.
func ScoreCeiling(durationMs int64, tolerance float64) int64 {
	expected := PointsFromElapsed(durationMs)
	// Round to micro-points first so float error cannot push an exact
	// product over the next integer.
	widened := math.Round(float64(expected)*(1+tolerance)*1e6) / 1e6
	return int64(math.Ceil(widened))
}

// FormatElapsed renders a duration the way the in-game timer shows it: mm:ss.cc.
func FormatElapsed(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	m := ms / 60000
	s := (ms % 60000) / 1000
	cs := (ms % 1000) / 10
	return fmt.Sprintf("%02d:%02d.%02d", m, s, cs)
}
