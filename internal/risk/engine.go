// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package risk computes risk scores for security events and classifies
// anomalous activity. Scoring is a weighted sum of independent factor
// contributions; classification is an OR of simple rules. Both operate on a
// Snapshot of history facts fetched up front, so a single event is scored
// without further store access and identical inputs always yield identical
// output.
package risk

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/metrics"
)

// Login-path factor contributions. Each is a sub-score in [0,1] scaled by
// its configured weight before summing.
const (
	offHoursContribution = 0.4
	newLocationSubScore  = 0.6
	newDeviceSubScore    = 0.5
	failedLoginDivisor   = 10.0
	frequencyDivisor     = 100.0
)

// API-path additive contributions, capped at 1.0 after summing.
const (
	sensitiveEndpointScore = 0.3
	failedRequestScore     = 0.2
	slowRequestScore       = 0.2
	requestBurstScore      = 0.3
)

// Snapshot carries the history facts an event is scored against. It is
// assembled once per event by the ingest layer; zero values describe a user
// with no recorded history, which never raises a lookback sub-score.
type Snapshot struct {
	// FailedLoginsLastHour is the user's LOGIN_FAILED count in the
	// trailing hour.
	FailedLoginsLastHour int

	// EventsLastHour is the user's total event count in the trailing hour.
	EventsLastHour int

	// RecentIPs holds the distinct source IPs of the user's last events,
	// newest first.
	RecentIPs []string

	// RecentUserAgents holds the distinct user agents of the user's last
	// events, newest first.
	RecentUserAgents []string

	// FailedFromIP is the LOGIN_FAILED count from the event's source IP in
	// the classifier's trailing window.
	FailedFromIP int

	// RequestsInBurstWindow is the number of requests attributed to the
	// user/IP pair inside the burst window. The lookup is pluggable; a
	// store without per-request attribution reports 0.
	RequestsInBurstWindow int

	// Degraded marks a snapshot built while one or more history lookups
	// failed. Missing counts are treated as zero and the score carries a
	// factor noting the gap.
	Degraded bool
}

// Engine scores events against configured weights and thresholds.
type Engine struct {
	scoring config.ScoringConfig
	anomaly config.AnomalyConfig
}

func NewEngine(scoring config.ScoringConfig, anomaly config.AnomalyConfig) *Engine {
	return &Engine{scoring: scoring, anomaly: anomaly}
}

// Score computes the event's risk score. Login-type events take the
// weighted login path; events carrying an endpoint take the API access
// path; anything else scores zero.
func (e *Engine) Score(ev event.Event, snap Snapshot) event.RiskScore {
	var score event.RiskScore
	switch {
	case ev.Action == event.ActionLogin || ev.Action == event.ActionLoginFailed:
		score = e.scoreLogin(ev, snap)
	case ev.Endpoint != "":
		score = e.scoreAPIAccess(ev, snap)
	default:
		score = event.RiskScore{}
	}

	if snap.Degraded {
		score.Factors = append(score.Factors, "Risk history unavailable; scored without lookback")
	}

	metrics.EventsScored.WithLabelValues(string(ev.Action), string(score.Level())).Inc()
	metrics.RiskScoreDistribution.Observe(score.Value)
	return score
}

func (e *Engine) scoreLogin(ev event.Event, snap Snapshot) event.RiskScore {
	var (
		total   float64
		factors []string
	)

	if snap.FailedLoginsLastHour >= e.scoring.FailedLoginThreshold {
		sub := math.Min(float64(snap.FailedLoginsLastHour)/failedLoginDivisor, 1.0)
		total += sub * e.scoring.FailedLoginWeight
		factors = append(factors, fmt.Sprintf("Recent failed login attempts: %d", snap.FailedLoginsLastHour))
	}

	if e.offHours(ev.Timestamp) {
		total += offHoursContribution * e.scoring.OffHoursWeight
		factors = append(factors, fmt.Sprintf("Login outside normal hours: %s", ev.Timestamp.Format("15:04")))
	}

	if isNewValue(ev.IPAddress, snap.RecentIPs) {
		total += newLocationSubScore * e.scoring.LocationWeight
		factors = append(factors, fmt.Sprintf("Login from new location: %s", ev.IPAddress))
	}

	if snap.EventsLastHour > e.scoring.FrequencyThresholdPerHour {
		sub := math.Min(float64(snap.EventsLastHour)/frequencyDivisor, 1.0)
		total += sub * e.scoring.FrequencyWeight
		factors = append(factors, fmt.Sprintf("High login frequency: %d in last hour", snap.EventsLastHour))
	}

	if ev.UserAgent != "" && isNewValue(ev.UserAgent, snap.RecentUserAgents) {
		total += newDeviceSubScore * e.scoring.DeviceWeight
		factors = append(factors, "Login from new device")
	}

	return event.RiskScore{Value: clamp(total), Factors: factors}
}

func (e *Engine) scoreAPIAccess(ev event.Event, snap Snapshot) event.RiskScore {
	var (
		total   float64
		factors []string
	)

	if e.isSensitiveEndpoint(ev.Endpoint) {
		total += sensitiveEndpointScore
		factors = append(factors, fmt.Sprintf("Sensitive endpoint access: %s", ev.Endpoint))
	}

	if ev.ResponseStatus >= 400 {
		total += failedRequestScore
		factors = append(factors, fmt.Sprintf("Failed request: status %d", ev.ResponseStatus))
	}

	if ev.Duration > e.scoring.SlowRequestThreshold {
		total += slowRequestScore
		factors = append(factors, fmt.Sprintf("Slow request execution: %s", ev.Duration))
	}

	if snap.RequestsInBurstWindow > e.scoring.BurstThreshold {
		total += requestBurstScore
		factors = append(factors, fmt.Sprintf("Request burst: %d in %s", snap.RequestsInBurstWindow, e.scoring.BurstWindow))
	}

	return event.RiskScore{Value: clamp(total), Factors: factors}
}

// offHours reports whether the time of day falls before the normal start
// hour or after the normal end hour, at minute granularity. A timestamp at
// exactly the end hour is still in-hours.
func (e *Engine) offHours(t time.Time) bool {
	minuteOfDay := t.Hour()*60 + t.Minute()
	return minuteOfDay < e.scoring.NormalStartHour*60 || minuteOfDay > e.scoring.NormalEndHour*60
}

func (e *Engine) isSensitiveEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	for _, pattern := range e.scoring.SensitiveEndpoints {
		if strings.Contains(endpoint, pattern) {
			return true
		}
	}
	return false
}

// isNewValue reports whether v is absent from the known list. An empty
// list means no history yet and is never treated as new.
func isNewValue(v string, known []string) bool {
	if v == "" || len(known) == 0 {
		return false
	}
	for _, k := range known {
		if k == v {
			return false
		}
	}
	return true
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
