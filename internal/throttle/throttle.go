// Package throttle spaces calls to an external service by a minimum interval.
package throttle

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits one call per interval across every goroutine sharing it.
// A single Limiter is the one serialized access point for the last-call
// timestamp, so concurrent flows cannot both slip under the interval.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Limiter. A non-positive interval disables throttling.
func New(interval time.Duration, logger *slog.Logger) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
		logger:   logger,
	}
}

// Wait blocks until the next call may be issued or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return l.limiter.Wait(ctx)
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	l.logger.Debug("throttle: delaying external call", slog.Duration("delay", delay))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
