package ratelimiter

import (
	"context"
	"time"
)

// RateLimiter enforces a strict rate limit on operations.
type RateLimiter struct {
	ticker  *time.Ticker
	ctx     context.Context
	first   chan struct{} // Pre-filled so the first request passes immediately.
	stopped bool
}

// New creates a new RateLimiter.
func New(rate time.Duration, ctx context.Context) *RateLimiter {
	rl := &RateLimiter{
		ticker: time.NewTicker(rate),
		ctx:    ctx,
		first:  make(chan struct{}, 1),
	}
	rl.first <- struct{}{}
	return rl
}

// Wait blocks until the next token is available, or until the context is done.
// The first call consumes the pre-filled token and returns instantly.
func (r *RateLimiter) Wait() error {
	select {
	case <-r.first:
		return nil
	default:
	}

	select {
	case <-r.ticker.C:
		return nil
	case <-r.ctx.Done():
		r.stopped = true
		return r.ctx.Err()
	}
}

// Stop releases resources used by the RateLimiter.
func (r *RateLimiter) Stop() {
	if !r.stopped {
		r.ticker.Stop()
		r.stopped = true
	}
}
