// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package ingest runs events through the full processing pipeline: assign
// identity, fetch history, score, classify, persist, and feed the threat
// monitor. Events can be processed synchronously or submitted to a bounded
// queue drained by a worker pool.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/monitor"
	"github.com/watchpost/watchpost/internal/risk"
)

// History lookback bounds for snapshot assembly.
const (
	failedLoginLookback = time.Hour
	recentIPLimit       = 10
	recentUALimit       = 5
)

// BurstCounter counts requests attributed to a user/IP pair since the
// given time. The default store has no per-request attribution, so the
// lookup is pluggable; a nil counter reports zero.
type BurstCounter func(ctx context.Context, username, ip string, since time.Time) (int, error)

// Service is the event processing pipeline.
type Service struct {
	cfg     config.IngestConfig
	scoring config.ScoringConfig
	anomaly config.AnomalyConfig

	engine  *risk.Engine
	store   history.Store
	monitor *monitor.Monitor
	bursts  BurstCounter
	now     func() time.Time

	queue chan event.Event
}

// New builds the pipeline. bursts and now may be nil for the defaults.
func New(cfg config.IngestConfig, scoring config.ScoringConfig, anomaly config.AnomalyConfig,
	engine *risk.Engine, store history.Store, mon *monitor.Monitor, bursts BurstCounter, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:     cfg,
		scoring: scoring,
		anomaly: anomaly,
		engine:  engine,
		store:   store,
		monitor: mon,
		bursts:  bursts,
		now:     now,
		queue:   make(chan event.Event, cfg.QueueSize),
	}
}

// Process runs one event through the pipeline and returns the assessed
// copy. History lookups fail open: a store outage degrades scoring, it
// never errors back to the caller.
func (s *Service) Process(ctx context.Context, ev event.Event) event.Event {
	ev = s.stamp(ev)

	snap := s.fetchSnapshot(ctx, ev)
	score := s.engine.Score(ev, snap)
	verdict := s.engine.Classify(ev, score, snap)
	assessed := ev.Assessed(score, verdict)

	if err := s.store.Add(ctx, assessed); err != nil {
		logging.Err(err).Str("event_id", assessed.ID).Msg("event persistence failed")
	}

	if assessed.IsFailedLogin() {
		s.monitor.RecordFailedLogin(assessed.Username, assessed.IPAddress)
	}
	s.monitor.RecordScoredEvent(assessed)

	logging.Debug().
		Str("event_id", assessed.ID).
		Str("correlation_id", assessed.CorrelationID).
		Str("action", string(assessed.Action)).
		Float64("risk_score", assessed.RiskScore).
		Bool("is_anomaly", assessed.IsAnomaly).
		Msg("event processed")

	return assessed
}

// Submit queues the event for asynchronous processing. A full queue drops
// the event and reports false; ingest never blocks the caller.
func (s *Service) Submit(ev event.Event) bool {
	select {
	case s.queue <- ev:
		metrics.IngestQueueDepth.Set(float64(len(s.queue)))
		return true
	default:
		metrics.IngestDropped.Inc()
		logging.Warn().
			Str("action", string(ev.Action)).
			Str("username", ev.Username).
			Msg("ingest queue full, event dropped")
		return false
	}
}

// RunWithContext drains the queue with the configured worker pool until
// the context is canceled.
func (s *Service) RunWithContext(ctx context.Context) error {
	logging.Info().
		Int("workers", s.cfg.Workers).
		Int("queue_size", s.cfg.QueueSize).
		Msg("ingest workers started")

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-s.queue:
					metrics.IngestQueueDepth.Set(float64(len(s.queue)))
					s.Process(ctx, ev)
				}
			}
		}()
	}
	wg.Wait()
	logging.Info().Msg("ingest workers stopped")
	return ctx.Err()
}

// stamp fills in identity and timing fields left empty by the caller.
func (s *Service) stamp(ev event.Event) event.Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	if ev.Outcome == "" {
		ev.Outcome = event.OutcomeSuccess
	}
	return ev
}

// fetchSnapshot assembles the history facts scoring needs. Each failed
// lookup is logged and replaced with its zero value, marking the snapshot
// degraded.
func (s *Service) fetchSnapshot(ctx context.Context, ev event.Event) risk.Snapshot {
	var snap risk.Snapshot
	lookbackStart := ev.Timestamp.Add(-failedLoginLookback)

	degrade := func(lookup string, err error) {
		snap.Degraded = true
		metrics.HistoryLookupFailures.Inc()
		logging.Err(err).Str("lookup", lookup).Msg("history lookup failed, scoring without it")
	}

	var err error
	if snap.FailedLoginsLastHour, err = s.store.CountFailedLoginsByUser(ctx, ev.Username, lookbackStart); err != nil {
		degrade("failed_logins_by_user", err)
	}
	if snap.EventsLastHour, err = s.store.CountEventsByUser(ctx, ev.Username, lookbackStart); err != nil {
		degrade("events_by_user", err)
	}
	if snap.RecentIPs, err = s.store.RecentIPs(ctx, ev.Username, recentIPLimit); err != nil {
		degrade("recent_ips", err)
	}
	if snap.RecentUserAgents, err = s.store.RecentUserAgents(ctx, ev.Username, recentUALimit); err != nil {
		degrade("recent_user_agents", err)
	}

	ipWindowStart := ev.Timestamp.Add(-s.anomaly.FailedFromIPWindow)
	if snap.FailedFromIP, err = s.store.CountFailedLoginsByIP(ctx, ev.IPAddress, ipWindowStart); err != nil {
		degrade("failed_logins_by_ip", err)
	} else if ev.IsFailedLogin() {
		// The event under classification sits inside its own trailing
		// window but is not persisted yet.
		snap.FailedFromIP++
	}

	if s.bursts != nil {
		burstStart := ev.Timestamp.Add(-s.scoring.BurstWindow)
		if snap.RequestsInBurstWindow, err = s.bursts(ctx, ev.Username, ev.IPAddress, burstStart); err != nil {
			degrade("burst_counter", err)
		}
	}

	return snap
}
