// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/config"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := newFakeClock()
	return New(config.Default().RateLimit, clock.Now), clock
}

func TestAllowExhaustsLoginBudget(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		d := l.Allow(CategoryLogin, "10.0.0.1")
		if !d.Allowed {
			t.Fatalf("attempt %d denied, want allowed", i+1)
		}
		if d.Remaining != 4-i {
			t.Errorf("attempt %d remaining = %d, want %d", i+1, d.Remaining, 4-i)
		}
	}

	d := l.Allow(CategoryLogin, "10.0.0.1")
	if d.Allowed {
		t.Fatal("6th attempt allowed, want denied")
	}
	if d.Remaining != 0 {
		t.Errorf("denied remaining = %d, want 0", d.Remaining)
	}
	if d.RetryAfter != 60*time.Second {
		t.Errorf("RetryAfter = %v, want 60s", d.RetryAfter)
	}
}

func TestCategoriesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		l.Allow(CategoryLogin, "10.0.0.1")
	}
	if d := l.Allow(CategoryLogin, "10.0.0.1"); d.Allowed {
		t.Fatal("login budget should be exhausted")
	}
	if d := l.Allow(CategoryAPI, "10.0.0.1"); !d.Allowed {
		t.Error("api category should still admit")
	}
	if d := l.Allow(CategoryAdmin, "10.0.0.1"); !d.Allowed {
		t.Error("admin category should still admit")
	}
	if d := l.Allow(CategoryLogin, "10.0.0.2"); !d.Allowed {
		t.Error("other client should still admit")
	}
}

func TestIntervalRefillRestoresFullBudget(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 5; i++ {
		l.Allow(CategoryLogin, "10.0.0.1")
	}
	if d := l.Allow(CategoryLogin, "10.0.0.1"); d.Allowed {
		t.Fatal("budget should be exhausted")
	}

	// Partial interval: still denied, no trickle refill.
	clock.Advance(30 * time.Second)
	if d := l.Allow(CategoryLogin, "10.0.0.1"); d.Allowed {
		t.Fatal("mid-interval attempt allowed, want denied")
	}

	clock.Advance(30 * time.Second)
	d := l.Allow(CategoryLogin, "10.0.0.1")
	if !d.Allowed {
		t.Fatal("attempt after refill denied, want allowed")
	}
	if d.Remaining != 4 {
		t.Errorf("remaining after refill = %d, want 4", d.Remaining)
	}
}

func TestUnknownCategoryFailsClosed(t *testing.T) {
	l, _ := newTestLimiter()

	d := l.Allow(Category("bogus"), "10.0.0.1")
	if d.Allowed {
		t.Error("unknown category allowed, want denied")
	}
	if d.RetryAfter != 60*time.Second {
		t.Errorf("RetryAfter = %v, want 60s", d.RetryAfter)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"login", CategoryLogin, true},
		{"api", CategoryAPI, true},
		{"admin", CategoryAdmin, true},
		{"Login", "", false},
		{"", "", false},
		{"root", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCategory(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClearRestoresBudget(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		l.Allow(CategoryLogin, "10.0.0.1")
	}
	if d := l.Allow(CategoryLogin, "10.0.0.1"); d.Allowed {
		t.Fatal("budget should be exhausted")
	}

	l.Clear("10.0.0.1")

	d := l.Allow(CategoryLogin, "10.0.0.1")
	if !d.Allowed || d.Remaining != 4 {
		t.Errorf("after Clear: allowed=%v remaining=%d, want allowed with 4 remaining", d.Allowed, d.Remaining)
	}
}

func TestRemainingDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter()

	if got := l.Remaining(CategoryLogin, "10.0.0.1"); got != 5 {
		t.Fatalf("Remaining = %d, want 5", got)
	}
	if got := l.Remaining(CategoryLogin, "10.0.0.1"); got != 5 {
		t.Fatalf("second Remaining = %d, want 5", got)
	}
	l.Allow(CategoryLogin, "10.0.0.1")
	if got := l.Remaining(CategoryLogin, "10.0.0.1"); got != 4 {
		t.Fatalf("Remaining after one Allow = %d, want 4", got)
	}
}

func TestEvictIdle(t *testing.T) {
	l, clock := newTestLimiter()

	l.Allow(CategoryLogin, "10.0.0.1")
	clock.Advance(2 * time.Hour)
	l.Allow(CategoryLogin, "10.0.0.2")

	if got := l.EvictIdle(); got != 1 {
		t.Errorf("EvictIdle = %d, want 1", got)
	}
	// Evicted client starts over with a fresh bucket.
	if d := l.Allow(CategoryLogin, "10.0.0.1"); !d.Allowed || d.Remaining != 4 {
		t.Errorf("after eviction: allowed=%v remaining=%d, want fresh bucket", d.Allowed, d.Remaining)
	}
}

// Concurrent first accesses for one key must converge on a single bucket:
// exactly capacity admissions across all goroutines.
func TestConcurrentFirstAccessSingleBucket(t *testing.T) {
	l, _ := newTestLimiter()

	const goroutines = 50
	var allowed atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if d := l.Allow(CategoryLogin, "203.0.113.7"); d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := allowed.Load(); got != 5 {
		t.Errorf("allowed %d concurrent requests, want exactly 5", got)
	}
}
