// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package history

import (
	"context"
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/event"
)

// MemStore is a fixed-capacity in-memory Store. Once full, each Add evicts
// the oldest event. Events are held in a ring so eviction is O(1).
type MemStore struct {
	mu       sync.RWMutex
	events   []event.Event
	head     int // index of the oldest event
	size     int
	capacity int
}

// NewMemStore returns a store retaining at most capacity events. A
// non-positive capacity falls back to 1.
func NewMemStore(capacity int) *MemStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemStore{
		events:   make([]event.Event, capacity),
		capacity: capacity,
	}
}

func (s *MemStore) Add(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tail := (s.head + s.size) % s.capacity
	s.events[tail] = e
	if s.size < s.capacity {
		s.size++
	} else {
		s.head = (s.head + 1) % s.capacity
	}
	return nil
}

// Len returns the number of retained events.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// at returns the i-th oldest event. Caller holds at least the read lock.
func (s *MemStore) at(i int) event.Event {
	return s.events[(s.head+i)%s.capacity]
}

// countWhere counts retained events matching pred. Iterates newest to
// oldest and stops once events predate since, relying on near-monotonic
// insertion order.
func (s *MemStore) countWhere(since time.Time, pred func(event.Event) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := s.size - 1; i >= 0; i-- {
		e := s.at(i)
		if e.Timestamp.Before(since) {
			break
		}
		if pred(e) {
			n++
		}
	}
	return n
}

func (s *MemStore) CountEvents(_ context.Context, since time.Time) (int, error) {
	return s.countWhere(since, func(event.Event) bool { return true }), nil
}

func (s *MemStore) CountFailedLoginsByUser(_ context.Context, username string, since time.Time) (int, error) {
	return s.countWhere(since, func(e event.Event) bool {
		return e.IsFailedLogin() && e.Username == username
	}), nil
}

func (s *MemStore) CountFailedLoginsByIP(_ context.Context, ip string, since time.Time) (int, error) {
	return s.countWhere(since, func(e event.Event) bool {
		return e.IsFailedLogin() && e.IPAddress == ip
	}), nil
}

func (s *MemStore) CountFailedLogins(_ context.Context, since time.Time) (int, error) {
	return s.countWhere(since, func(e event.Event) bool {
		return e.IsFailedLogin()
	}), nil
}

func (s *MemStore) CountHighRisk(_ context.Context, since time.Time) (int, error) {
	return s.countWhere(since, func(e event.Event) bool {
		return e.IsHighRisk()
	}), nil
}

func (s *MemStore) CountAnomalies(_ context.Context, since time.Time) (int, error) {
	return s.countWhere(since, func(e event.Event) bool {
		return e.IsAnomaly
	}), nil
}

func (s *MemStore) CountEventsByUser(_ context.Context, username string, since time.Time) (int, error) {
	return s.countWhere(since, func(e event.Event) bool {
		return e.Username == username
	}), nil
}

func (s *MemStore) RecentIPs(_ context.Context, username string, limit int) ([]string, error) {
	return s.recentDistinct(username, limit, func(e event.Event) string { return e.IPAddress }), nil
}

func (s *MemStore) RecentUserAgents(_ context.Context, username string, limit int) ([]string, error) {
	return s.recentDistinct(username, limit, func(e event.Event) string { return e.UserAgent }), nil
}

// recentDistinct walks the user's events newest first collecting distinct
// non-empty values of field, up to limit.
func (s *MemStore) recentDistinct(username string, limit int, field func(event.Event) string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		return nil
	}
	seen := make(map[string]struct{}, limit)
	out := make([]string, 0, limit)
	for i := s.size - 1; i >= 0 && len(out) < limit; i-- {
		e := s.at(i)
		if e.Username != username {
			continue
		}
		v := field(e)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (s *MemStore) EventsByUser(_ context.Context, username string, limit int) ([]event.Event, error) {
	return s.collectNewest(limit, func(e event.Event) bool { return e.Username == username }), nil
}

func (s *MemStore) Recent(_ context.Context, limit int) ([]event.Event, error) {
	return s.collectNewest(limit, func(event.Event) bool { return true }), nil
}

func (s *MemStore) collectNewest(limit int, pred func(event.Event) bool) []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		return nil
	}
	out := make([]event.Event, 0, limit)
	for i := s.size - 1; i >= 0 && len(out) < limit; i-- {
		e := s.at(i)
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
