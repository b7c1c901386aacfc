// Package clients provides the rate-limited upstream request gate
package clients

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	// Wait blocks until a permit is available or ctx is done
	Wait(ctx context.Context) error

	// GetStats returns rate limiter statistics
	GetStats() RateLimiterStats
}

// RateLimiterStats provides statistics about limiter usage.
type RateLimiterStats struct {
	Interval        time.Duration `json:"interval"`
	Burst           int           `json:"burst"`
	AllowedRequests int64         `json:"allowed_requests"`
	DelayedRequests int64         `json:"delayed_requests"`
	CancelledWaits  int64         `json:"cancelled_waits"`
	AverageWaitTime time.Duration `json:"average_wait_time"`
}

// IntervalLimiter is a token bucket holding a single permit that refills
// once per interval. It is safe for concurrent use.
type IntervalLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration

	allowedRequests int64
	delayedRequests int64
	cancelledWaits  int64
	totalWaitTime   int64
}

// NewIntervalLimiter creates a limiter granting one call per interval.
// A non-positive interval disables limiting.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &IntervalLimiter{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Wait blocks until a permit is available. Unlike rate.Limiter.Wait it
// sleeps until ctx is actually done instead of failing early when the
// deadline is closer than the next permit, so callers can tell a deadline
// from other failures with ctx.Err().
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := l.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		atomic.AddInt64(&l.allowedRequests, 1)
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		atomic.AddInt64(&l.allowedRequests, 1)
		atomic.AddInt64(&l.delayedRequests, 1)
		atomic.AddInt64(&l.totalWaitTime, delay.Nanoseconds())
		return nil
	case <-ctx.Done():
		r.Cancel()
		atomic.AddInt64(&l.cancelledWaits, 1)
		return ctx.Err()
	}
}

// GetStats returns rate limiter statistics
func (l *IntervalLimiter) GetStats() RateLimiterStats {
	delayed := atomic.LoadInt64(&l.delayedRequests)
	avgWait := time.Duration(0)
	if delayed > 0 {
		avgWait = time.Duration(atomic.LoadInt64(&l.totalWaitTime) / delayed)
	}

	return RateLimiterStats{
		Interval:        l.interval,
		Burst:           l.limiter.Burst(),
		AllowedRequests: atomic.LoadInt64(&l.allowedRequests),
		DelayedRequests: delayed,
		CancelledWaits:  atomic.LoadInt64(&l.cancelledWaits),
		AverageWaitTime: avgWait,
	}
}
