package alert

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimiter is a token bucket guarding a webhook endpoint so a burst of
// transitions (e.g. every breaker opening during an outage) cannot flood it.
type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter creates a limiter allowing requestsPerSecond sustained with
// the given burst.
func newRateLimiter(requestsPerSecond float64, burst int) *rateLimiter {
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// wait blocks until a token is available or the context is canceled.
func (r *rateLimiter) wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
