// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
)

// RunTrendSweep analyzes security trends on the configured interval until
// the context is canceled. A failing sweep is logged and the next tick
// proceeds normally.
func (m *Monitor) RunTrendSweep(ctx context.Context) error {
	logging.Info().Dur("interval", m.cfg.TrendInterval).Msg("trend sweep started")
	ticker := time.NewTicker(m.cfg.TrendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("trend sweep stopping")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			err := m.analyzeTrends(ctx)
			metrics.ObserveSweep("trend", start, err)
			if err != nil {
				logging.Err(err).Msg("trend analysis failed")
			}
		}
	}
}

// RunCleanupSweep resets offense counters and prunes stale cooldown
// stamps on the configured interval until the context is canceled.
func (m *Monitor) RunCleanupSweep(ctx context.Context) error {
	logging.Info().Dur("interval", m.cfg.CleanupInterval).Msg("cleanup sweep started")
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("cleanup sweep stopping")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			m.Cleanup()
			metrics.ObserveSweep("cleanup", start, nil)
		}
	}
}

// analyzeTrends raises trend alerts when high-risk or anomalous activity
// inside the trailing trend interval exceeds its threshold.
func (m *Monitor) analyzeTrends(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trend analysis panic: %v", r)
		}
	}()

	since := m.now().Add(-m.cfg.TrendInterval)

	highRisk, err := m.store.CountHighRisk(ctx, since)
	if err != nil {
		return fmt.Errorf("count high-risk events: %w", err)
	}
	anomalies, err := m.store.CountAnomalies(ctx, since)
	if err != nil {
		return fmt.Errorf("count anomalies: %w", err)
	}

	if highRisk > m.cfg.TrendHighRiskThreshold {
		m.raise(event.AlertHighRiskTrend,
			fmt.Sprintf("High number of risk activities in last 5 minutes: %d", highRisk),
			event.SystemKey, event.SystemKey, event.SeverityHigh)
	}

	if anomalies > m.cfg.TrendAnomalyThreshold {
		m.raise(event.AlertAnomalyTrend,
			fmt.Sprintf("High number of anomalies detected in last 5 minutes: %d", anomalies),
			event.SystemKey, event.SystemKey, event.SeverityMedium)
	}

	logging.Debug().
		Int("high_risk", highRisk).
		Int("anomalies", anomalies).
		Msg("trend analysis completed")
	return nil
}

// Cleanup resets the offense counters and drops cooldown stamps older
// than the retention window. Counters restart from zero; alerts already
// in cooldown stay suppressed until their stamps age out.
func (m *Monitor) Cleanup() {
	m.failedByIP.Reset()
	m.failedByUser.Reset()
	m.publishThreatGauges()

	cutoff := m.now().Add(-m.cfg.CooldownRetention)
	pruned := m.cooldown.prune(cutoff)

	logging.Debug().Int("cooldowns_pruned", pruned).Msg("tracking state cleanup completed")
}
