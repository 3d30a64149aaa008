package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/SIMReseller/internal/config"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "k", 3, time.Minute, now)
		if err != nil || !result.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i, result, err)
		}
		if result.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining=%d, got %d", i, 2-i, result.Remaining)
		}
	}

	blocked, _ := limiter.Allow(ctx, "k", 3, time.Minute, now.Add(30*time.Second))
	if blocked.Allowed {
		t.Fatalf("expected fourth request in window to be blocked")
	}
	if want := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC); !blocked.Reset.Equal(want) {
		t.Fatalf("expected reset=%s, got %s", want, blocked.Reset)
	}

	other, _ := limiter.Allow(ctx, "other", 3, time.Minute, now)
	if !other.Allowed {
		t.Fatalf("expected a different key to have its own budget")
	}

	next, _ := limiter.Allow(ctx, "k", 3, time.Minute, now.Add(time.Minute))
	if !next.Allowed {
		t.Fatalf("expected the next window to reset the counter")
	}
}

func TestMemoryLimiter_SweepsOldWindows(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, key := range []string{"a", "b", "c"} {
		_, _ = limiter.Allow(context.Background(), key, 1, time.Minute, now)
	}
	_, _ = limiter.Allow(context.Background(), "d", 1, time.Minute, now.Add(2*time.Minute))
	if len(limiter.counters) != 1 {
		t.Fatalf("expected stale counters to be dropped, have %d", len(limiter.counters))
	}
}

func TestManager_DisabledAllowsEverything(t *testing.T) {
	m := NewManager(config.RateLimitConfig{Limit: 0}, nil, nil)
	for i := 0; i < 100; i++ {
		result, err := m.Allow(context.Background(), "k")
		if err != nil || !result.Allowed {
			t.Fatalf("expected allowed, got %+v err=%v", result, err)
		}
	}
	var nilManager *Manager
	if result, _ := nilManager.Allow(context.Background(), "k"); !result.Allowed {
		t.Fatalf("expected nil manager to allow")
	}
}

func TestManager_RedisFailureFallsBackToMemory(t *testing.T) {
	var created atomic.Int32
	factory := func(opts *redis.Options) *redis.Client {
		created.Add(1)
		opts.Addr = "127.0.0.1:1"
		opts.DialTimeout = 100 * time.Millisecond
		opts.MaxRetries = -1
		return redis.NewClient(opts)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.RateLimitConfig{
		Limit:  2,
		Window: time.Minute,
		Redis:  config.RedisConfig{Enabled: true, Addr: "redis.invalid:6379"},
	}
	m := NewManager(cfg, func() time.Time { return now }, factory)
	defer func() { _ = m.Close() }()

	for i := 0; i < 2; i++ {
		result, err := m.Allow(context.Background(), "ip:1.2.3.4:/auth/login")
		if err != nil || !result.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i, result, err)
		}
	}
	result, _ := m.Allow(context.Background(), "ip:1.2.3.4:/auth/login")
	if result.Allowed {
		t.Fatalf("expected memory fallback to enforce the limit")
	}
	if created.Load() != 1 {
		t.Fatalf("expected breaker to stop reconnect attempts, got %d clients", created.Load())
	}
}

func TestManager_RedisMissingAddress(t *testing.T) {
	m := NewManager(config.RateLimitConfig{Limit: 1, Redis: config.RedisConfig{Enabled: true}}, nil, nil)
	first, _ := m.Allow(context.Background(), "k")
	second, _ := m.Allow(context.Background(), "k")
	if !first.Allowed || second.Allowed {
		t.Fatalf("expected memory limits without redis address, got %+v %+v", first, second)
	}
}

func TestKeyForClient(t *testing.T) {
	if got := KeyForClient("/auth/login", "10.0.0.1"); got != "ip:10.0.0.1:/auth/login" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := KeyForClient("/auth/login", " "); got != "" {
		t.Fatalf("expected empty key for missing ip, got %q", got)
	}
}

func TestRedisLimiter_BuildKey(t *testing.T) {
	start := time.Unix(1700000000, 0)
	if got := NewRedisLimiter(nil, "simr:rl").buildKey("k", start); got != "simr:rl:k:1700000000" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := NewRedisLimiter(nil, "").buildKey("k", start); got != "k:1700000000" {
		t.Fatalf("unexpected key %q", got)
	}
}
