// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package monitor tracks live threat indicators across events. It keeps
// in-memory offense counters per source IP and username, raises alerts
// through a cooldown gate, and periodically analyzes trends and resets its
// tracking state.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/risk"
)

// ThreatLevel is the aggregate posture reported by CurrentStatus.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "LOW"
	ThreatMedium   ThreatLevel = "MEDIUM"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
	ThreatUnknown  ThreatLevel = "UNKNOWN"
)

// Aggregate threat level cut points over the status window.
const (
	criticalHighRisk  = 50
	criticalAnomalies = 20
	highHighRisk      = 20
	highAnomalies     = 10
	highFailed        = 100
	mediumHighRisk    = 5
	mediumAnomalies   = 3
	mediumFailed      = 20
)

// Status is a point-in-time snapshot of the security posture.
type Status struct {
	ThreatLevel         ThreatLevel `json:"threat_level"`
	TotalActivities     int         `json:"total_activities"`
	FailedActivities    int         `json:"failed_activities"`
	HighRiskActivities  int         `json:"high_risk_activities"`
	AnomalousActivities int         `json:"anomalous_activities"`
	ActiveIPThreats     int         `json:"active_ip_threats"`
	ActiveUserThreats   int         `json:"active_user_threats"`
	Timestamp           time.Time   `json:"timestamp"`
}

// AlertSink receives alerts the monitor decides to raise.
type AlertSink interface {
	Raise(alert event.SecurityAlert)
}

// Monitor evaluates events against attack thresholds as they arrive.
type Monitor struct {
	cfg   config.MonitorConfig
	store history.Store
	sink  AlertSink
	now   func() time.Time

	failedByIP   *CounterSet
	failedByUser *CounterSet
	cooldown     *cooldownGate
}

// New builds a Monitor raising alerts into sink. now is injectable for
// tests; nil means wall clock.
func New(cfg config.MonitorConfig, store history.Store, sink AlertSink, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		cfg:          cfg,
		store:        store,
		sink:         sink,
		now:          now,
		failedByIP:   NewCounterSet(),
		failedByUser: NewCounterSet(),
		cooldown:     newCooldownGate(),
	}
}

// RecordFailedLogin bumps the offense counters for the source IP and the
// targeted username, raising brute-force alerts once either crosses its
// threshold.
func (m *Monitor) RecordFailedLogin(username, ipAddress string) {
	ipCount := m.failedByIP.Increment(ipAddress)
	userCount := m.failedByUser.Increment(username)
	m.publishThreatGauges()

	logging.Debug().
		Str("username", username).
		Str("ip_address", ipAddress).
		Int("ip_count", ipCount).
		Int("user_count", userCount).
		Msg("failed login recorded")

	if ipCount >= m.cfg.FailedLoginThresholdIP {
		m.raise(event.AlertBruteForceIP,
			fmt.Sprintf("Brute force attack detected from IP: %s (%d failed attempts)", ipAddress, ipCount),
			ipAddress, username, event.SeverityHigh)
	}

	if userCount >= m.cfg.FailedLoginThresholdUser {
		m.raise(event.AlertBruteForceUser,
			fmt.Sprintf("Multiple failed login attempts for user: %s (%d attempts)", username, userCount),
			ipAddress, username, event.SeverityMedium)
	}
}

// RecordScoredEvent inspects an assessed event and raises high-risk and
// anomaly alerts as warranted.
func (m *Monitor) RecordScoredEvent(ev event.Event) {
	if ev.RiskScore > m.cfg.HighRiskScoreThreshold {
		m.raise(event.AlertHighRiskActivity,
			fmt.Sprintf("High-risk activity detected: %s by %s (Risk Score: %.2f)", ev.Action, ev.Username, ev.RiskScore),
			ev.IPAddress, ev.Username, event.SeverityHigh)
	}

	if ev.IsAnomaly {
		m.raise(event.AlertAnomalyDetected,
			fmt.Sprintf("Anomalous activity detected: %s by %s - %s", ev.Action, ev.Username, ev.AnomalyReasons),
			ev.IPAddress, ev.Username, event.SeverityMedium)
	}
}

// raise passes the alert through the cooldown gate before handing it to
// the sink. Suppressed alerts are counted but otherwise silent.
func (m *Monitor) raise(alertType event.AlertType, message, ipAddress, username string, severity event.Severity) {
	alert := event.SecurityAlert{
		Type:      alertType,
		Message:   message,
		Severity:  severity,
		IPAddress: ipAddress,
		Username:  username,
		Timestamp: m.now(),
	}

	if !m.cooldown.tryAcquire(alert.Key(), alert.Timestamp, m.cfg.AlertCooldown) {
		metrics.AlertsSuppressed.WithLabelValues(string(alertType)).Inc()
		logging.Debug().Str("alert_key", alert.Key()).Msg("alert suppressed by cooldown")
		return
	}

	logging.Warn().
		Str("alert_type", string(alertType)).
		Str("severity", string(severity)).
		Str("ip_address", ipAddress).
		Str("username", username).
		Msg(message)

	m.sink.Raise(alert)
}

// CurrentStatus summarizes activity over the status window. When the
// store cannot answer, the snapshot degrades to an UNKNOWN threat level
// instead of failing.
func (m *Monitor) CurrentStatus(ctx context.Context) Status {
	now := m.now()
	since := now.Add(-m.cfg.StatusWindow)

	total, err := m.store.CountEvents(ctx, since)
	if err != nil {
		return m.unknownStatus(now, err)
	}
	failed, err := m.store.CountFailedLogins(ctx, since)
	if err != nil {
		return m.unknownStatus(now, err)
	}
	highRisk, err := m.store.CountHighRisk(ctx, since)
	if err != nil {
		return m.unknownStatus(now, err)
	}
	anomalous, err := m.store.CountAnomalies(ctx, since)
	if err != nil {
		return m.unknownStatus(now, err)
	}

	return Status{
		ThreatLevel:         threatLevel(failed, highRisk, anomalous),
		TotalActivities:     total,
		FailedActivities:    failed,
		HighRiskActivities:  highRisk,
		AnomalousActivities: anomalous,
		ActiveIPThreats:     m.failedByIP.Len(),
		ActiveUserThreats:   m.failedByUser.Len(),
		Timestamp:           now,
	}
}

func (m *Monitor) unknownStatus(now time.Time, err error) Status {
	metrics.HistoryLookupFailures.Inc()
	logging.Err(err).Msg("security status lookup failed")
	return Status{ThreatLevel: ThreatUnknown, Timestamp: now}
}

// Report builds the user's risk assessment over events since the given
// time.
func (m *Monitor) Report(ctx context.Context, username string, since time.Time) (risk.Report, error) {
	events, err := m.store.EventsByUser(ctx, username, maxReportEvents)
	if err != nil {
		return risk.Report{}, fmt.Errorf("load events for %s: %w", username, err)
	}
	inWindow := events[:0:0]
	for _, e := range events {
		if !e.Timestamp.Before(since) {
			inWindow = append(inWindow, e)
		}
	}
	return risk.BuildReport(username, since, inWindow), nil
}

const maxReportEvents = 10000

func threatLevel(failed, highRisk, anomalous int) ThreatLevel {
	switch {
	case highRisk > criticalHighRisk || anomalous > criticalAnomalies:
		return ThreatCritical
	case highRisk > highHighRisk || anomalous > highAnomalies || failed > highFailed:
		return ThreatHigh
	case highRisk > mediumHighRisk || anomalous > mediumAnomalies || failed > mediumFailed:
		return ThreatMedium
	default:
		return ThreatLow
	}
}

func (m *Monitor) publishThreatGauges() {
	metrics.ActiveThreatKeys.WithLabelValues("ip").Set(float64(m.failedByIP.Len()))
	metrics.ActiveThreatKeys.WithLabelValues("user").Set(float64(m.failedByUser.Len()))
}
