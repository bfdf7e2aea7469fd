// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package risk

import (
	"fmt"
	"time"

	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/metrics"
)

// Classify evaluates the anomaly rules against a scored event. Rules are
// independent; the verdict is anomalous if any rule fires, and each fired
// rule contributes one reason in rule order.
func (e *Engine) Classify(ev event.Event, score event.RiskScore, snap Snapshot) event.Verdict {
	var reasons []string

	if score.Value > e.anomaly.ScoreThreshold {
		reasons = append(reasons, fmt.Sprintf("High risk score: %.2f", score.Value))
	}

	if ev.IsFailedLogin() && snap.FailedFromIP > e.anomaly.FailedFromIPThreshold {
		reasons = append(reasons, fmt.Sprintf("Multiple failed attempts from IP: %d", snap.FailedFromIP))
	}

	if e.quietHours(ev.Timestamp) {
		reasons = append(reasons, fmt.Sprintf("Activity during unusual hours: %s", ev.Timestamp.Format("15:04")))
	}

	verdict := event.Verdict{IsAnomaly: len(reasons) > 0, Reasons: reasons}
	if verdict.IsAnomaly {
		metrics.AnomaliesFlagged.Inc()
	}
	return verdict
}

// quietHours reports whether the time of day is before the quiet-end hour
// or after the quiet-start hour, at minute granularity.
func (e *Engine) quietHours(t time.Time) bool {
	minuteOfDay := t.Hour()*60 + t.Minute()
	return minuteOfDay < e.anomaly.QuietEndHour*60 || minuteOfDay > e.anomaly.QuietStartHour*60
}
