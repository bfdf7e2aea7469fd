// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package supervisor

import (
	"context"
	"time"

	"github.com/watchpost/watchpost/internal/logging"
)

// Runner is the context-bound run loop shared by the pipeline components.
// Satisfied by *ingest.Service and *alerts.Dispatcher.
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerFunc adapts a bare run function into a Runner. Used for components
// exposing more than one loop, like the monitor's sweeps.
type RunnerFunc func(ctx context.Context) error

// RunWithContext implements Runner.
func (f RunnerFunc) RunWithContext(ctx context.Context) error {
	return f(ctx)
}

// RunnerService adapts a Runner into a supervised service.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps runner under the given service name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor log messages.
func (s *RunnerService) String() string {
	return s.name
}

// BucketEvictor matches ratelimit.Limiter's idle eviction method.
type BucketEvictor interface {
	EvictIdle() int
}

// EvictionService periodically drops idle rate limit buckets.
type EvictionService struct {
	evictor  BucketEvictor
	interval time.Duration
	name     string
}

// NewEvictionService creates the bucket eviction loop. A non-positive
// interval defaults to one hour.
func NewEvictionService(evictor BucketEvictor, interval time.Duration) *EvictionService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &EvictionService{
		evictor:  evictor,
		interval: interval,
		name:     "bucket-eviction",
	}
}

// Serve implements suture.Service. It ticks until the context is canceled.
func (s *EvictionService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.evictor.EvictIdle(); n > 0 {
				logging.Debug().Int("evicted", n).Msg("Dropped idle rate limit buckets")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor log messages.
func (s *EvictionService) String() string {
	return s.name
}
