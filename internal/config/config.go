// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package config defines Watchpost's configuration model and its layered
// loading (defaults, optional YAML file, environment variables).
//
// Every threshold and weight used by the scoring engine, the anomaly
// detector, the threat monitor, and the rate limiter lives here so that the
// core packages contain no magic numbers of their own. An invalid
// configuration is fatal: Load returns an error and the process must not
// start.
package config

import (
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Anomaly   AnomalyConfig   `koanf:"anomaly"`
	Monitor   MonitorConfig   `koanf:"monitor"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Ingest    IngestConfig    `koanf:"ingest"`
	History   HistoryConfig   `koanf:"history"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ScoringConfig holds the risk-scoring weights and thresholds.
//
// The five login weights are relative contributions and must sum to 1.0;
// Validate enforces this within a small epsilon.
type ScoringConfig struct {
	FailedLoginWeight float64 `koanf:"failed_login_weight" validate:"gte=0,lte=1"`
	OffHoursWeight    float64 `koanf:"off_hours_weight" validate:"gte=0,lte=1"`
	LocationWeight    float64 `koanf:"location_weight" validate:"gte=0,lte=1"`
	FrequencyWeight   float64 `koanf:"frequency_weight" validate:"gte=0,lte=1"`
	DeviceWeight      float64 `koanf:"device_weight" validate:"gte=0,lte=1"`

	// FailedLoginThreshold is the minimum recent failed-login count before
	// the failed-attempts factor contributes at all.
	FailedLoginThreshold int `koanf:"failed_login_threshold" validate:"gte=1"`

	// FrequencyThresholdPerHour is the login count per hour beyond which the
	// high-frequency factor contributes.
	FrequencyThresholdPerHour int `koanf:"frequency_threshold_per_hour" validate:"gte=1"`

	// NormalStartHour and NormalEndHour bound the expected working window
	// (local time). Logins outside it contribute the off-hours factor.
	NormalStartHour int `koanf:"normal_start_hour" validate:"gte=0,lte=23"`
	NormalEndHour   int `koanf:"normal_end_hour" validate:"gte=0,lte=23"`

	// SensitiveEndpoints are substring patterns marking high-value API
	// surfaces for the API-access score.
	SensitiveEndpoints []string `koanf:"sensitive_endpoints"`

	// SlowRequestThreshold is the execution duration past which an API call
	// is scored as suspiciously slow.
	SlowRequestThreshold time.Duration `koanf:"slow_request_threshold"`

	// BurstThreshold is the request count in the burst window past which the
	// burst factor contributes.
	BurstThreshold int           `koanf:"burst_threshold" validate:"gte=1"`
	BurstWindow    time.Duration `koanf:"burst_window"`
}

// AnomalyConfig holds the anomaly classification rule thresholds.
type AnomalyConfig struct {
	// ScoreThreshold: a risk score strictly above this flags the event.
	ScoreThreshold float64 `koanf:"score_threshold" validate:"gte=0,lte=1"`

	// FailedFromIPThreshold: more than this many failed logins from one IP
	// within FailedFromIPWindow flags a failed-login event.
	FailedFromIPThreshold int           `koanf:"failed_from_ip_threshold" validate:"gte=1"`
	FailedFromIPWindow    time.Duration `koanf:"failed_from_ip_window"`

	// QuietEndHour / QuietStartHour bound the unusual-hours rule: local
	// time before QuietEndHour (02:00) or after QuietStartHour (23:00)
	// flags the event.
	QuietEndHour   int `koanf:"quiet_end_hour" validate:"gte=0,lte=23"`
	QuietStartHour int `koanf:"quiet_start_hour" validate:"gte=0,lte=23"`
}

// MonitorConfig holds the threat monitor thresholds and sweep intervals.
type MonitorConfig struct {
	// FailedLoginThresholdIP raises BRUTE_FORCE_IP at this per-IP count.
	FailedLoginThresholdIP int `koanf:"failed_login_threshold_ip" validate:"gte=1"`

	// FailedLoginThresholdUser raises BRUTE_FORCE_USER at this per-user count.
	FailedLoginThresholdUser int `koanf:"failed_login_threshold_user" validate:"gte=1"`

	// HighRiskScoreThreshold: a scored event strictly above this raises
	// HIGH_RISK_ACTIVITY.
	HighRiskScoreThreshold float64 `koanf:"high_risk_score_threshold" validate:"gte=0,lte=1"`

	// AlertCooldown is the minimum interval between two alerts sharing a key.
	AlertCooldown time.Duration `koanf:"alert_cooldown"`

	// TrendInterval is how often the trend sweep runs.
	TrendInterval time.Duration `koanf:"trend_interval"`

	// TrendHighRiskThreshold raises HIGH_RISK_TREND when the trailing-window
	// high-risk count exceeds it.
	TrendHighRiskThreshold int `koanf:"trend_high_risk_threshold" validate:"gte=1"`

	// TrendAnomalyThreshold raises ANOMALY_TREND when the trailing-window
	// anomaly count exceeds it.
	TrendAnomalyThreshold int `koanf:"trend_anomaly_threshold" validate:"gte=1"`

	// CleanupInterval is how often per-key counters are cleared and stale
	// cooldown entries evicted.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// CooldownRetention is how long a cooldown entry survives the cleanup
	// sweep after its last alert.
	CooldownRetention time.Duration `koanf:"cooldown_retention"`

	// StatusWindow is the trailing window used by CurrentStatus aggregates.
	StatusWindow time.Duration `koanf:"status_window"`
}

// RateLimitConfig holds the token-bucket admission control settings.
// Buckets refill to full capacity once per RefillInterval.
type RateLimitConfig struct {
	LoginCapacity  int           `koanf:"login_capacity" validate:"gte=1"`
	APICapacity    int           `koanf:"api_capacity" validate:"gte=1"`
	AdminCapacity  int           `koanf:"admin_capacity" validate:"gte=1"`
	RefillInterval time.Duration `koanf:"refill_interval"`

	// RetryAfter is the fixed hint reported to denied callers.
	RetryAfter time.Duration `koanf:"retry_after"`

	// IdleEviction drops buckets untouched for this long during cleanup.
	IdleEviction time.Duration `koanf:"idle_eviction"`
}

// AlertsConfig configures the alert dispatcher.
type AlertsConfig struct {
	// BufferCapacity bounds the recent-alerts ring buffer.
	BufferCapacity int `koanf:"buffer_capacity" validate:"gte=1"`

	// StatisticsWindow is the trailing window for alert statistics.
	StatisticsWindow time.Duration `koanf:"statistics_window"`

	// QueueSize bounds the async notification queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	Webhook WebhookConfig `koanf:"webhook"`
}

// WebhookConfig configures the outbound webhook notification channel.
type WebhookConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"omitempty,url"`

	// MinInterval throttles consecutive webhook deliveries.
	MinInterval time.Duration `koanf:"min_interval"`
}

// IngestConfig configures the asynchronous event recording path.
type IngestConfig struct {
	// QueueSize bounds the ingest work queue; a full queue drops events
	// with a logged warning rather than blocking the caller.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// Workers is the number of recording workers.
	Workers int `koanf:"workers" validate:"gte=1"`
}

// HistoryConfig configures the bundled in-memory event store.
type HistoryConfig struct {
	// Capacity bounds the number of retained recent events.
	Capacity int `koanf:"capacity" validate:"gte=1"`
}

// Default returns a Config with all built-in values, unvalidated.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8420,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Scoring: ScoringConfig{
			FailedLoginWeight:         0.30,
			OffHoursWeight:            0.20,
			LocationWeight:            0.25,
			FrequencyWeight:           0.15,
			DeviceWeight:              0.10,
			FailedLoginThreshold:      3,
			FrequencyThresholdPerHour: 50,
			NormalStartHour:           8,
			NormalEndHour:             18,
			SensitiveEndpoints: []string{
				"/api/admin/",
				"/api/users/",
				"/api/roles/",
				"/api/audit/export",
				"/api/system/",
			},
			SlowRequestThreshold: 5 * time.Second,
			BurstThreshold:       100,
			BurstWindow:          5 * time.Minute,
		},
		Anomaly: AnomalyConfig{
			ScoreThreshold:        0.70,
			FailedFromIPThreshold: 5,
			FailedFromIPWindow:    10 * time.Minute,
			QuietEndHour:          2,
			QuietStartHour:        23,
		},
		Monitor: MonitorConfig{
			FailedLoginThresholdIP:   10,
			FailedLoginThresholdUser: 5,
			HighRiskScoreThreshold:   0.7,
			AlertCooldown:            15 * time.Minute,
			TrendInterval:            5 * time.Minute,
			TrendHighRiskThreshold:   20,
			TrendAnomalyThreshold:    10,
			CleanupInterval:          time.Hour,
			CooldownRetention:        time.Hour,
			StatusWindow:             time.Hour,
		},
		RateLimit: RateLimitConfig{
			LoginCapacity:  5,
			APICapacity:    100,
			AdminCapacity:  50,
			RefillInterval: time.Minute,
			RetryAfter:     60 * time.Second,
			IdleEviction:   time.Hour,
		},
		Alerts: AlertsConfig{
			BufferCapacity:   100,
			StatisticsWindow: 24 * time.Hour,
			QueueSize:        256,
			Webhook: WebhookConfig{
				Enabled:     false,
				URL:         "",
				MinInterval: 500 * time.Millisecond,
			},
		},
		Ingest: IngestConfig{
			QueueSize: 1024,
			Workers:   4,
		},
		History: HistoryConfig{
			Capacity: 10000,
		},
	}
}
