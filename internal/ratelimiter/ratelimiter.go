package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter throttles connection admission using a token bucket.
//
// The accept loop calls Wait before handing a freshly accepted connection to
// the worker pool. Tokens refill at connectionsPerSecond and the bucket holds
// up to burst tokens, so short spikes are admitted immediately while the
// sustained rate stays bounded.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter   *rate.Limiter
	unlimited bool
}

// New creates a limiter admitting connectionsPerSecond on average with the
// given burst. A zero rate disables limiting. A zero burst with a non-zero
// rate defaults to one token so that admission is still possible.
func New(connectionsPerSecond float64, burst int) *RateLimiter {
	if connectionsPerSecond <= 0 {
		return &RateLimiter{
			limiter:   rate.NewLimiter(rate.Inf, 0),
			unlimited: true,
		}
	}

	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(connectionsPerSecond), burst),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.unlimited {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("connection admission: %w", err)
	}
	return nil
}

// Unlimited reports whether the limiter admits everything.
func (r *RateLimiter) Unlimited() bool {
	return r.unlimited
}

// Limit returns the configured sustained rate (0 when unlimited).
func (r *RateLimiter) Limit() float64 {
	if r.unlimited {
		return 0
	}
	return float64(r.limiter.Limit())
}

// Burst returns the bucket capacity.
func (r *RateLimiter) Burst() int {
	return r.limiter.Burst()
}

// Tokens returns a snapshot of the tokens left in the bucket, or 0 when
// unlimited.
func (r *RateLimiter) Tokens() float64 {
	if r.unlimited {
		return 0
	}
	return r.limiter.Tokens()
}
