// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package config

import (
	"fmt"
	"math"

	"github.com/watchpost/watchpost/internal/validation"
)

// weightSumEpsilon tolerates float accumulation error when checking that the
// login weights sum to 1.0.
const weightSumEpsilon = 1e-9

// Validate checks that the configuration is complete and internally
// consistent. A non-nil error means the service must not start.
func Validate(c *Config) error {
	return c.Validate()
}

// Validate checks struct tags first, then the semantic rules the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateAnomaly(); err != nil {
		return err
	}
	return c.validateDurations()
}

// validateScoring enforces the weighted-sum contract: the five login weights
// are relative shares of a total of 1.0.
func (c *Config) validateScoring() error {
	s := c.Scoring
	sum := s.FailedLoginWeight + s.OffHoursWeight + s.LocationWeight +
		s.FrequencyWeight + s.DeviceWeight
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}

	if s.NormalStartHour >= s.NormalEndHour {
		return fmt.Errorf("scoring normal_start_hour (%d) must be before normal_end_hour (%d)",
			s.NormalStartHour, s.NormalEndHour)
	}
	return nil
}

// validateAnomaly checks the unusual-hours window is a wraparound window
// (quiet period spans midnight).
func (c *Config) validateAnomaly() error {
	a := c.Anomaly
	if a.QuietEndHour >= a.QuietStartHour {
		return fmt.Errorf("anomaly quiet_end_hour (%d) must be before quiet_start_hour (%d)",
			a.QuietEndHour, a.QuietStartHour)
	}
	return nil
}

// validateDurations rejects non-positive intervals that would wedge tickers
// or disable cooldown suppression entirely.
func (c *Config) validateDurations() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"server.timeout", c.Server.Timeout > 0},
		{"monitor.alert_cooldown", c.Monitor.AlertCooldown > 0},
		{"monitor.trend_interval", c.Monitor.TrendInterval > 0},
		{"monitor.cleanup_interval", c.Monitor.CleanupInterval > 0},
		{"monitor.cooldown_retention", c.Monitor.CooldownRetention > 0},
		{"monitor.status_window", c.Monitor.StatusWindow > 0},
		{"ratelimit.refill_interval", c.RateLimit.RefillInterval > 0},
		{"ratelimit.retry_after", c.RateLimit.RetryAfter > 0},
		{"ratelimit.idle_eviction", c.RateLimit.IdleEviction > 0},
		{"alerts.statistics_window", c.Alerts.StatisticsWindow > 0},
		{"anomaly.failed_from_ip_window", c.Anomaly.FailedFromIPWindow > 0},
		{"scoring.slow_request_threshold", c.Scoring.SlowRequestThreshold > 0},
		{"scoring.burst_window", c.Scoring.BurstWindow > 0},
	}

	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%s must be positive", check.name)
		}
	}
	return nil
}
