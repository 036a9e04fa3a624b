// Package ratelimit enforces a fixed delay between outbound requests to the
// catalog site, counted from the end of one request to the start of the next.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks until the caller may issue its next request. Done marks the
// end of a request; the next Wait is measured from it.
type Pacer interface {
	Wait(ctx context.Context) error
	Done()
}

var _ Pacer = (*Limiter)(nil)

// Observer receives the time spent waiting for a token.
type Observer func(name string, waited time.Duration)

// Config holds rate limiter configuration.
type Config struct {
	// Name labels the limiter in metrics, e.g. "request" or "probe".
	Name string
	// Interval is the minimum gap between Done and the next Wait returning.
	// Zero or negative disables pacing.
	Interval time.Duration
	Observe  Observer
}

// Limiter paces a single sequential caller.
type Limiter struct {
	name    string
	rate    rate.Limit
	observe Observer

	mu      sync.Mutex
	limiter *rate.Limiter
}

// New creates a Limiter. The first Wait returns immediately; each later Wait
// returns no sooner than Interval after the preceding Done.
func New(cfg Config) *Limiter {
	r := rate.Inf
	if cfg.Interval > 0 {
		r = rate.Every(cfg.Interval)
	}
	return &Limiter{
		name:    cfg.Name,
		rate:    r,
		limiter: rate.NewLimiter(r, 1),
		observe: cfg.Observe,
	}
}

// Wait blocks until the next request may be sent, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Only record delay if we actually waited.
	if waited := time.Since(start); waited > time.Millisecond && l.observe != nil {
		l.observe(l.name, waited)
	}
	return nil
}

// Done restarts the interval: the bucket is emptied now, so a request that
// outlasted the interval is still followed by the full delay.
func (l *Limiter) Done() {
	if l.rate == rate.Inf {
		return
	}
	fresh := rate.NewLimiter(l.rate, 1)
	fresh.AllowN(time.Now(), 1)
	l.mu.Lock()
	l.limiter = fresh
	l.mu.Unlock()
}
