package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides fixed-window rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// windowStart returns the start of the fixed window containing now.
func windowStart(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = time.Second
	}
	return now.Truncate(window)
}
