// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package ratelimit gates request admission with per-client token buckets.
// Each category has a fixed capacity refilled in whole intervals rather
// than as a continuous trickle: a client exhausting its budget waits for
// the interval boundary, then gets the full budget back.
package ratelimit

import (
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
)

// Category selects the bucket class a request is admitted under.
type Category string

const (
	CategoryLogin Category = "login"
	CategoryAPI   Category = "api"
	CategoryAdmin Category = "admin"
)

// ParseCategory maps a string onto a known Category.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryLogin, CategoryAPI, CategoryAdmin:
		return Category(s), true
	default:
		return "", false
	}
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	lastRefill time.Time
	lastAccess time.Time
}

// Limiter manages buckets keyed by category and client identifier.
// Buckets are created lazily on first access; concurrent first accesses
// for the same key converge on a single bucket.
type Limiter struct {
	cfg config.RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New builds a Limiter. now is injectable for tests; pass nil for wall
// clock time.
func New(cfg config.RateLimitConfig, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		cfg:     cfg,
		now:     now,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token for the client in the given category. Unknown
// categories deny; admission guards external requests, so any fault here
// fails closed rather than open.
func (l *Limiter) Allow(category Category, clientID string) Decision {
	capacity, ok := l.capacityFor(category)
	if !ok {
		logging.Warn().Str("category", string(category)).Msg("unknown rate limit category, denying")
		metrics.RateLimitDecisions.WithLabelValues(string(category), "deny").Inc()
		return Decision{Allowed: false, RetryAfter: l.cfg.RetryAfter}
	}

	b := l.bucketFor(string(category)+":"+clientID, capacity)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.lastAccess = now
	l.refill(b, now)

	if b.tokens <= 0 {
		metrics.RateLimitDecisions.WithLabelValues(string(category), "deny").Inc()
		return Decision{Allowed: false, Remaining: 0, RetryAfter: l.cfg.RetryAfter}
	}

	b.tokens--
	metrics.RateLimitDecisions.WithLabelValues(string(category), "allow").Inc()
	return Decision{Allowed: true, Remaining: b.tokens}
}

// Remaining reports the client's available tokens without consuming one.
func (l *Limiter) Remaining(category Category, clientID string) int {
	capacity, ok := l.capacityFor(category)
	if !ok {
		return 0
	}
	b := l.bucketFor(string(category)+":"+clientID, capacity)

	b.mu.Lock()
	defer b.mu.Unlock()
	l.refill(b, l.now())
	return b.tokens
}

// Clear drops the client's bucket in all categories, restoring a full
// budget on next access.
func (l *Limiter) Clear(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range []Category{CategoryLogin, CategoryAPI, CategoryAdmin} {
		delete(l.buckets, string(c)+":"+clientID)
	}
	metrics.RateLimitBuckets.Set(float64(len(l.buckets)))
	logging.Info().Str("client_id", clientID).Msg("rate limit cleared")
}

// EvictIdle removes buckets untouched for longer than the idle window and
// returns the number evicted.
func (l *Limiter) EvictIdle() int {
	cutoff := l.now().Add(-l.cfg.IdleEviction)

	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for key, b := range l.buckets {
		b.mu.Lock()
		idle := b.lastAccess.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(l.buckets, key)
			evicted++
		}
	}
	metrics.RateLimitBuckets.Set(float64(len(l.buckets)))
	return evicted
}

func (l *Limiter) capacityFor(category Category) (int, bool) {
	switch category {
	case CategoryLogin:
		return l.cfg.LoginCapacity, true
	case CategoryAPI:
		return l.cfg.APICapacity, true
	case CategoryAdmin:
		return l.cfg.AdminCapacity, true
	default:
		return 0, false
	}
}

// bucketFor returns the bucket for key, creating it atomically under the
// map lock so racing first accesses share one bucket.
func (l *Limiter) bucketFor(key string, capacity int) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b := &bucket{
		tokens:     capacity,
		capacity:   capacity,
		lastRefill: l.now(),
	}
	l.buckets[key] = b
	metrics.RateLimitBuckets.Set(float64(len(l.buckets)))
	return b
}

// refill restores the full budget once at least one whole interval has
// passed, keeping lastRefill aligned to interval boundaries. Caller holds
// the bucket lock.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < l.cfg.RefillInterval {
		return
	}
	intervals := elapsed / l.cfg.RefillInterval
	b.tokens = b.capacity
	b.lastRefill = b.lastRefill.Add(intervals * l.cfg.RefillInterval)
}
