// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package monitor

import "sync"

// CounterSet tracks per-key offense counts. Increment creates missing
// keys and bumps them under one lock, so two racing first increments for
// a key can never produce two counters.
type CounterSet struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCounterSet() *CounterSet {
	return &CounterSet{counts: make(map[string]int)}
}

// Increment adds one to the key's count and returns the new value.
func (c *CounterSet) Increment(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key]
}

// Get returns the key's current count, zero if untracked.
func (c *CounterSet) Get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Len returns the number of tracked keys.
func (c *CounterSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}

// Reset drops all tracked keys.
func (c *CounterSet) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}
