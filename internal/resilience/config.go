package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a RetryConfig. Zero values keep
// the defaults; a negative penalty disables the rate limit penalty.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier float64, rateLimitPenaltyMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	switch {
	case rateLimitPenaltyMs > 0:
		cfg.RateLimitPenalty = time.Duration(rateLimitPenaltyMs) * time.Millisecond
	case rateLimitPenaltyMs < 0:
		cfg.RateLimitPenalty = 0
	}
	return cfg
}
