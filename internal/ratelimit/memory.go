package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	window int64
	count  int
}

// MemoryLimiter implements a fixed-window in-memory rate limiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
	sweepAt  int64
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
	}
}

// Allow checks whether the request fits in the window containing now.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	start := windowStart(now, window)
	current := start.UnixNano()
	reset := start.Add(window).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(current)
	entry := l.counters[key]
	if entry == nil {
		entry = &memoryEntry{window: current}
		l.counters[key] = entry
	}
	if entry.window != current {
		entry.window = current
		entry.count = 0
	}
	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	entry.count++
	return Result{Allowed: true, Remaining: limit - entry.count, Reset: reset}, nil
}

// sweep drops counters from past windows once per window. Callers hold l.mu.
func (l *MemoryLimiter) sweep(current int64) {
	if l.sweepAt == current {
		return
	}
	for key, entry := range l.counters {
		if entry.window < current {
			delete(l.counters, key)
		}
	}
	l.sweepAt = current
}
