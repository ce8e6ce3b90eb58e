package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTokenBucket_Allow(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(5, 1.0, clock.Now)

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if tb.Allow() {
		t.Error("6th request should be denied")
	}

	clock.Advance(2 * time.Second)

	if !tb.Allow() {
		t.Error("Request after 2s should be allowed")
	}
	if !tb.Allow() {
		t.Error("2nd request after 2s should be allowed")
	}
	if tb.Allow() {
		t.Error("3rd request after 2s should be denied")
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	tb := NewTokenBucket(3, 1.0)
	for i := 0; i < 3; i++ {
		tb.Allow()
	}
	if tb.Allow() {
		t.Error("Bucket should be empty")
	}

	tb.Reset()

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Errorf("Request %d should be allowed after reset", i+1)
		}
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(2, 0.001, 0)
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("a")
	if rl.Allow("a") {
		t.Error("key a should be exhausted")
	}
	if !rl.Allow("b") {
		t.Error("key b should be allowed")
	}

	rl.Reset("a")
	if !rl.Allow("a") {
		t.Error("key a should be allowed after reset")
	}

	if got := rl.GetStats().ActiveBuckets; got != 2 {
		t.Errorf("expected 2 buckets, got %d", got)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := newFakeClock()
	rl := &RateLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   1,
		refillRate: 1,
		ttl:        time.Minute,
		now:        clock.Now,
		stop:       make(chan struct{}),
	}

	rl.Allow("old")
	clock.Advance(2 * time.Minute)
	rl.Allow("new")
	rl.cleanup()

	if _, ok := rl.buckets["old"]; ok {
		t.Error("idle bucket should be removed")
	}
	if _, ok := rl.buckets["new"]; !ok {
		t.Error("recent bucket should be kept")
	}
}
