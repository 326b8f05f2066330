package domain

import (
	"time"
)

// RateLimitRule configures one limiter instance. Window is a fixed window:
// the counter resets once more than Window has elapsed since WindowStart.
type RateLimitRule struct {
	Scope       string        `json:"scope"`
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
	// MinSpacing is the minimum gap between two admitted requests; 0 disables it.
	MinSpacing time.Duration `json:"min_spacing"`
	// BindIdentity makes the first admitted identity stick to the key.
	BindIdentity bool `json:"bind_identity"`
}

// RateLimitRecord is the per-key state of a limiter.
type RateLimitRecord struct {
	WindowStart   time.Time `json:"window_start"`
	RequestCount  int       `json:"request_count"`
	LastRequest   time.Time `json:"last_request"`
	BoundIdentity string    `json:"bound_identity,omitempty"`
}

const (
	RateLimitScopeOrigin = "origin"
	RateLimitScopeWallet = "wallet"
	RateLimitScopeAux    = "aux"
)
