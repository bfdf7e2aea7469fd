// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package risk

import (
	"time"

	"github.com/watchpost/watchpost/internal/event"
)

// Report summarizes a user's recent activity from a risk standpoint.
type Report struct {
	Username            string          `json:"username"`
	AssessmentPeriod    time.Time       `json:"assessment_period"`
	TotalActivities     int             `json:"total_activities"`
	HighRiskActivities  int             `json:"high_risk_activities"`
	AnomalousActivities int             `json:"anomalous_activities"`
	AverageRiskScore    float64         `json:"average_risk_score"`
	RiskLevel           event.RiskLevel `json:"risk_level"`
}

// Overall-level cut points. A user is escalated either by average score or
// by the share of their activity that was high risk.
const (
	criticalAvgScore  = 0.8
	criticalRiskRatio = 0.3
	highAvgScore      = 0.6
	highRiskRatio     = 0.2
	mediumAvgScore    = 0.3
	mediumRiskRatio   = 0.1
)

// BuildReport aggregates the user's events into a Report. Events are
// expected to already carry their assessed score and flags.
func BuildReport(username string, since time.Time, events []event.Event) Report {
	r := Report{
		Username:         username,
		AssessmentPeriod: since,
		TotalActivities:  len(events),
	}

	var scoreSum float64
	for _, e := range events {
		if e.IsHighRisk() {
			r.HighRiskActivities++
		}
		if e.IsAnomaly {
			r.AnomalousActivities++
		}
		scoreSum += e.RiskScore
	}
	if len(events) > 0 {
		r.AverageRiskScore = scoreSum / float64(len(events))
	}

	r.RiskLevel = overallLevel(r.AverageRiskScore, r.HighRiskActivities, r.TotalActivities)
	return r
}

func overallLevel(avgScore float64, highRisk, total int) event.RiskLevel {
	var ratio float64
	if total > 0 {
		ratio = float64(highRisk) / float64(total)
	}
	switch {
	case avgScore > criticalAvgScore || ratio > criticalRiskRatio:
		return event.RiskCritical
	case avgScore > highAvgScore || ratio > highRiskRatio:
		return event.RiskHigh
	case avgScore > mediumAvgScore || ratio > mediumRiskRatio:
		return event.RiskMedium
	default:
		return event.RiskLow
	}
}
