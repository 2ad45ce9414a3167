package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until the next request may start
	Wait(ctx context.Context) error
}

type limiterKey struct{}

// WithLimiter returns a context carrying l. Code running inside a paced turn
// uses it to pace any extra request it starts.
func WithLimiter(ctx context.Context, l Limiter) context.Context {
	return context.WithValue(ctx, limiterKey{}, l)
}

// FromContext returns the limiter stored by WithLimiter
func FromContext(ctx context.Context) (Limiter, bool) {
	l, ok := ctx.Value(limiterKey{}).(Limiter)
	return l, ok && l != nil
}

// Pacer enforces a minimum interval between request starts. A request that
// took longer than the interval is followed immediately by the next one.
type Pacer struct {
	interval  time.Duration
	lastStart time.Time
	mu        sync.Mutex
	now       func() time.Time
}

// NewPacer creates a pacer allowing at most rps request starts per second.
// A non-positive rps disables pacing.
func NewPacer(rps float64) *Pacer {
	var interval time.Duration
	if rps > 0 {
		interval = time.Duration(float64(time.Second) / rps)
	}
	return &Pacer{interval: interval, now: time.Now}
}

// Interval returns the minimum gap between request starts
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Delay returns how long the caller must wait before the next start
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastStart.IsZero() {
		return 0
	}
	remaining := p.interval - p.now().Sub(p.lastStart)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Wait blocks until the interval since the previous start has elapsed, then
// records the current time as the new start.
func (p *Pacer) Wait(ctx context.Context) error {
	if d := p.Delay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	p.lastStart = p.now()
	p.mu.Unlock()
	return nil
}
