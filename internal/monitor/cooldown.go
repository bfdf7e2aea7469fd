// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package monitor

import (
	"sync"
	"time"
)

// cooldownGate suppresses repeat alerts for the same key inside a
// cooldown window. The check and the timestamp update happen under one
// lock, so concurrent raises for the same key admit exactly one.
type cooldownGate struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newCooldownGate() *cooldownGate {
	return &cooldownGate{last: make(map[string]time.Time)}
}

// tryAcquire reports whether the key is outside its cooldown window and,
// if so, stamps it with now.
func (g *cooldownGate) tryAcquire(key string, now time.Time, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.last[key]; ok && now.Before(last.Add(cooldown)) {
		return false
	}
	g.last[key] = now
	return true
}

// prune drops stamps older than cutoff and returns the number removed.
func (g *cooldownGate) prune(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for key, stamp := range g.last {
		if stamp.Before(cutoff) {
			delete(g.last, key)
			removed++
		}
	}
	return removed
}

// size returns the number of tracked stamps.
func (g *cooldownGate) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}
