// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package event defines the immutable security event model shared by the
// scoring engine, the threat monitor, and the alert dispatcher.
package event

import (
	"strings"
	"time"
)

// Action categorizes what a security event records.
type Action string

const (
	ActionLogin            Action = "LOGIN"
	ActionLoginFailed      Action = "LOGIN_FAILED"
	ActionLogout           Action = "LOGOUT"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	ActionAccountLocked    Action = "ACCOUNT_LOCKED"
	ActionDataAccess       Action = "DATA_ACCESS"
	ActionDataExport       Action = "DATA_EXPORT"
	ActionAdminAction      Action = "ADMIN_ACTION"
	ActionPermissionGrant  Action = "PERMISSION_GRANT"
	ActionPermissionRevoke Action = "PERMISSION_REVOKE"
	ActionSystemConfig     Action = "SYSTEM_CONFIG"
)

// Outcome indicates how the recorded action concluded.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeBlocked Outcome = "BLOCKED"
	OutcomeWarning Outcome = "WARNING"
)

// RiskLevel buckets a risk score into an ordinal tier.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Risk level cut-points. Each is the inclusive lower bound of its tier.
const (
	CriticalThreshold = 0.8
	HighThreshold     = 0.6
	MediumThreshold   = 0.3
)

// LevelFromScore derives the RiskLevel for a score. It is a pure function:
// the level must never be stored independently of the score it was derived
// from.
func LevelFromScore(score float64) RiskLevel {
	switch {
	case score >= CriticalThreshold:
		return RiskCritical
	case score >= HighThreshold:
		return RiskHigh
	case score >= MediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskScore is a deterministic danger estimate in [0, 1] with the ordered
// list of contributions that produced it.
type RiskScore struct {
	Value   float64  `json:"value"`
	Factors []string `json:"factors,omitempty"`
}

// Level returns the risk tier for this score.
func (s RiskScore) Level() RiskLevel {
	return LevelFromScore(s.Value)
}

// Verdict is the outcome of anomaly classification for a single event.
// It is computed once and never retroactively changed.
type Verdict struct {
	IsAnomaly bool     `json:"is_anomaly"`
	Reasons   []string `json:"reasons,omitempty"`
}

// Event is one immutable security-relevant occurrence. Ownership passes
// through the pipeline by value; nothing mutates an Event after creation.
type Event struct {
	ID            string  `json:"id"`
	CorrelationID string  `json:"correlation_id,omitempty"`
	Username      string  `json:"username,omitempty"`
	IPAddress     string  `json:"ip_address"`
	UserAgent     string  `json:"user_agent,omitempty"`
	SessionID     string  `json:"session_id,omitempty"`
	Action        Action  `json:"action"`
	Outcome       Outcome `json:"outcome"`
	Details       string  `json:"details,omitempty"`

	// API access attributes.
	Endpoint       string        `json:"endpoint,omitempty"`
	HTTPMethod     string        `json:"http_method,omitempty"`
	RequestParams  string        `json:"request_params,omitempty"`
	ResponseStatus int           `json:"response_status,omitempty"`
	Duration       time.Duration `json:"duration_ms,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Assessment, attached via Assessed before persistence.
	RiskScore      float64   `json:"risk_score"`
	RiskLevel      RiskLevel `json:"risk_level"`
	RiskFactors    []string  `json:"risk_factors,omitempty"`
	IsAnomaly      bool      `json:"is_anomaly"`
	AnomalyReasons string    `json:"anomaly_reasons,omitempty"`
}

// Assessed returns a copy of the event with the risk assessment attached.
// The risk level is always recomputed from the score here so the two can
// never diverge.
func (e Event) Assessed(score RiskScore, verdict Verdict) Event {
	e.RiskScore = score.Value
	e.RiskLevel = score.Level()
	e.RiskFactors = score.Factors
	e.IsAnomaly = verdict.IsAnomaly
	e.AnomalyReasons = joinReasons(verdict.Reasons)
	return e
}

// IsHighRisk reports whether the event sits in the high or critical tier.
func (e Event) IsHighRisk() bool {
	return e.RiskLevel == RiskHigh || e.RiskLevel == RiskCritical
}

// IsFailedLogin reports whether the event records a failed authentication.
func (e Event) IsFailedLogin() bool {
	return e.Action == ActionLoginFailed
}

func joinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}

// Severity ranks a security alert.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ValidSeverity reports whether s is a known severity value.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AlertType identifies the condition that raised an alert.
type AlertType string

const (
	AlertBruteForceIP     AlertType = "BRUTE_FORCE_IP"
	AlertBruteForceUser   AlertType = "BRUTE_FORCE_USER"
	AlertHighRiskActivity AlertType = "HIGH_RISK_ACTIVITY"
	AlertAnomalyDetected  AlertType = "ANOMALY_DETECTED"
	AlertHighRiskTrend    AlertType = "HIGH_RISK_TREND"
	AlertAnomalyTrend     AlertType = "ANOMALY_TREND"
)

// SystemKey is used as the IP and username of system-wide (trend) alerts.
const SystemKey = "SYSTEM"

// SecurityAlert is created once by the threat monitor and immutable
// afterward.
type SecurityAlert struct {
	Type      AlertType `json:"alert_type"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	IPAddress string    `json:"ip_address"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the cooldown key for this alert: two alerts sharing a key may
// not be raised within the cooldown window of each other.
func (a SecurityAlert) Key() string {
	return string(a.Type) + ":" + a.IPAddress + ":" + a.Username
}
