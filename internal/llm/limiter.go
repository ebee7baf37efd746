package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	throttleFactor = 0.5
	recoverFactor  = 1.2
	floorDivisor   = 4
)

// AdaptiveLimiter paces completion requests on the client side. The
// configured requests_per_sec is the ceiling. Every rate-limited reply from
// the completion service halves the pace, down to a quarter of the ceiling,
// so the retry loop does not keep hitting the provider's quota at full speed.
// Each successful completion raises the pace by 20% until the ceiling is
// reached again.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	bucket    *rate.Limiter
	ceiling   rate.Limit
	floor     rate.Limit
	throttles int
}

// NewAdaptiveLimiter returns a limiter that starts at perSec requests per
// second with the given burst.
func NewAdaptiveLimiter(perSec rate.Limit, burst int) *AdaptiveLimiter {
	if burst < 1 {
		burst = 1
	}
	return &AdaptiveLimiter{
		bucket:  rate.NewLimiter(perSec, burst),
		ceiling: perSec,
		floor:   perSec / floorDivisor,
	}
}

// Wait blocks until the next completion may be sent or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.bucket.Wait(ctx)
}

// OnSuccess records a completed call.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bucket.Limit() >= a.ceiling {
		return
	}
	next := a.adjust(recoverFactor)
	if next == a.ceiling {
		zap.L().Debug("llm: request rate restored", zap.Float64("rate", float64(next)))
	}
}

// OnRateLimit records a rate-limited completion reply.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.throttles++
	next := a.adjust(throttleFactor)
	zap.L().Warn("llm: completion rate limited, slowing requests",
		zap.Float64("rate", float64(next)),
		zap.Int("throttles", a.throttles),
	)
}

// adjust scales the current limit by factor within [floor, ceiling].
// The caller holds a.mu.
func (a *AdaptiveLimiter) adjust(factor float64) rate.Limit {
	next := a.bucket.Limit() * rate.Limit(factor)
	next = min(max(next, a.floor), a.ceiling)
	a.bucket.SetLimit(next)
	return next
}

// Limit returns the current pace in requests per second.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bucket.Limit()
}

// Throttles returns how many rate-limited replies have been seen.
func (a *AdaptiveLimiter) Throttles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.throttles
}
