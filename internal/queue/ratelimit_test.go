package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(testRedis(t), 2)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	allowed, used, resetAt, err := rl.Allow(context.Background(), 1, 10, now)
	if err != nil {
		t.Fatalf("allow#1: %v", err)
	}
	if !allowed || used != 1 {
		t.Fatalf("expected first call allowed with used=1, got allowed=%v used=%d", allowed, used)
	}
	if want := now.Add(time.Hour); !resetAt.Equal(want) {
		t.Fatalf("expected reset at %v, got %v", want, resetAt)
	}

	allowed, used, _, err = rl.Allow(context.Background(), 1, 10, now)
	if err != nil {
		t.Fatalf("allow#2: %v", err)
	}
	if !allowed || used != 2 {
		t.Fatalf("expected second call allowed with used=2, got allowed=%v used=%d", allowed, used)
	}

	allowed, used, _, err = rl.Allow(context.Background(), 1, 10, now)
	if err != nil {
		t.Fatalf("allow#3: %v", err)
	}
	if allowed || used != 3 {
		t.Fatalf("expected third call denied with used=3, got allowed=%v used=%d", allowed, used)
	}
}

func TestRateLimiterScopedPerChatAndUser(t *testing.T) {
	rl := NewRateLimiter(testRedis(t), 1)
	now := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)

	if allowed, _, _, _ := rl.Allow(context.Background(), 1, 10, now); !allowed {
		t.Fatalf("first call for (1,10) must be allowed")
	}
	if allowed, _, _, _ := rl.Allow(context.Background(), 1, 10, now); allowed {
		t.Fatalf("second call for (1,10) must be denied")
	}
	if allowed, _, _, _ := rl.Allow(context.Background(), 1, 20, now); !allowed {
		t.Fatalf("another user in the same chat has a separate budget")
	}
	if allowed, _, _, _ := rl.Allow(context.Background(), 2, 10, now); !allowed {
		t.Fatalf("the same user in another chat has a separate budget")
	}
}

func TestRateLimiterNewWindowResets(t *testing.T) {
	rl := NewRateLimiter(testRedis(t), 1)

	first := time.Date(2026, 8, 30, 10, 59, 0, 0, time.UTC)
	if allowed, _, _, _ := rl.Allow(context.Background(), 1, 10, first); !allowed {
		t.Fatalf("first call must be allowed")
	}
	if allowed, _, _, _ := rl.Allow(context.Background(), 1, 10, first); allowed {
		t.Fatalf("second call in the same window must be denied")
	}

	next := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	if allowed, _, _, _ := rl.Allow(context.Background(), 1, 10, next); !allowed {
		t.Fatalf("the next hourly window must start fresh")
	}
}

func TestUpdateDeduplicatorMarkFirst(t *testing.T) {
	d := NewUpdateDeduplicator(testRedis(t), time.Minute)

	first, err := d.MarkFirst(context.Background(), 12345)
	if err != nil {
		t.Fatalf("mark#1: %v", err)
	}
	if !first {
		t.Fatalf("unseen update must report first=true")
	}

	first, err = d.MarkFirst(context.Background(), 12345)
	if err != nil {
		t.Fatalf("mark#2: %v", err)
	}
	if first {
		t.Fatalf("repeated update must report first=false")
	}

	first, err = d.MarkFirst(context.Background(), 12346)
	if err != nil {
		t.Fatalf("mark#3: %v", err)
	}
	if !first {
		t.Fatalf("a different update id must report first=true")
	}
}
