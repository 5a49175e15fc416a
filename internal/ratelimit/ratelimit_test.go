package ratelimit

import (
	"context"
	"testing"
	"time"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestAllowEnforcesWindowLimit(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, time.August, 22, 10, 0, 0, 0, time.UTC)}
	limiter := New(2, time.Minute, clock.Now)

	if !limiter.Allow("user-1") || !limiter.Allow("user-1") {
		t.Fatal("first two events should be allowed")
	}
	if limiter.Allow("user-1") {
		t.Fatal("third event in the window should be rejected")
	}
	// Other keys are counted independently.
	if !limiter.Allow("user-2") {
		t.Fatal("independent key should be allowed")
	}

	clock.Advance(time.Minute)
	if !limiter.Allow("user-1") {
		t.Fatal("new window should allow again")
	}
}

func TestRemaining(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, time.August, 22, 10, 0, 0, 0, time.UTC)}
	limiter := New(3, time.Minute, clock.Now)

	if got := limiter.Remaining("user-1"); got != 3 {
		t.Fatalf("remaining = %d, want 3", got)
	}
	limiter.Allow("user-1")
	if got := limiter.Remaining("user-1"); got != 2 {
		t.Fatalf("remaining = %d, want 2", got)
	}
	clock.Advance(time.Minute)
	if got := limiter.Remaining("user-1"); got != 3 {
		t.Fatalf("remaining after window = %d, want 3", got)
	}
}

func TestZeroLimitDisablesLimiting(t *testing.T) {
	t.Parallel()

	limiter := New(0, time.Minute, nil)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("user-1") {
			t.Fatal("disabled limiter rejected an event")
		}
	}
}

func TestPruneDropsExpiredWindows(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, time.August, 22, 10, 0, 0, 0, time.UTC)}
	limiter := New(1, time.Minute, clock.Now)
	limiter.Allow("user-1")
	limiter.Allow("user-2")

	clock.Advance(2 * time.Minute)
	limiter.Prune()

	limiter.mu.Lock()
	size := len(limiter.windows)
	limiter.mu.Unlock()
	if size != 0 {
		t.Fatalf("windows after prune = %d, want 0", size)
	}
}

func TestPruneLoopDropsExpiredWindows(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, time.August, 22, 10, 0, 0, 0, time.UTC)}
	limiter := New(1, time.Minute, clock.Now)
	limiter.Allow("user-1")
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go limiter.PruneLoop(ctx, time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	for {
		limiter.mu.Lock()
		size := len(limiter.windows)
		limiter.mu.Unlock()
		if size == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("windows not pruned, %d remaining", size)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
