// Package ratelimit throttles outbound calls to a search provider so bursts of
// analyses stay inside the provider's quota.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket with optional jitter added after each grant.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	bucket *rate.Limiter
	jitter time.Duration
}

// NewLimiter allows rps requests per second with the given burst. jitter is a
// fraction (0.0 to 1.0) of the interval added as a random delay after each
// grant. rps <= 0 disables limiting.
func NewLimiter(rps float64, burst int, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	if burst < 1 {
		burst = 1
	}
	jitter = min(max(jitter, 0), 1)

	interval := time.Duration(float64(time.Second) / rps)
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
		jitter: time.Duration(float64(interval) * jitter),
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.bucket == nil {
		return nil
	}
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}
	if l.jitter <= 0 {
		return nil
	}

	t := time.NewTimer(rand.N(l.jitter))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enabled reports whether the limiter ever blocks.
func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}
