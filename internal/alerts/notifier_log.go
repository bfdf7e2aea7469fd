// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package alerts

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/logging"
)

// LogNotifier writes alerts to the structured log, mapping alert severity
// onto log level.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, alert event.SecurityAlert) error {
	logger := logging.Logger()
	logger.WithLevel(levelFor(alert.Severity)).
		Str("alert_type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Str("ip_address", alert.IPAddress).
		Str("username", alert.Username).
		Time("raised_at", alert.Timestamp).
		Msg(alert.Message)
	return nil
}

func levelFor(severity event.Severity) zerolog.Level {
	switch severity {
	case event.SeverityCritical:
		return zerolog.ErrorLevel
	case event.SeverityHigh:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
