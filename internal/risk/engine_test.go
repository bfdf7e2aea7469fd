// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package risk

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/event"
)

func newTestEngine() *Engine {
	cfg := config.Default()
	return NewEngine(cfg.Scoring, cfg.Anomaly)
}

func businessHours() time.Time {
	return time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
}

func TestScoreLoginCleanHistory(t *testing.T) {
	e := newTestEngine()
	ev := event.Event{
		Username:  "alice",
		IPAddress: "10.0.0.1",
		UserAgent: "Mozilla/5.0",
		Action:    event.ActionLogin,
		Timestamp: businessHours(),
	}
	snap := Snapshot{
		RecentIPs:        []string{"10.0.0.1"},
		RecentUserAgents: []string{"Mozilla/5.0"},
	}

	score := e.Score(ev, snap)
	if score.Value != 0 {
		t.Errorf("score = %v, want 0", score.Value)
	}
	if len(score.Factors) != 0 {
		t.Errorf("factors = %v, want none", score.Factors)
	}
}

func TestScoreLoginFactors(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name       string
		ev         event.Event
		snap       Snapshot
		wantScore  float64
		wantFactor string
	}{
		{
			name: "failed login attempts above threshold",
			ev: event.Event{
				Action: event.ActionLoginFailed, IPAddress: "10.0.0.1",
				Timestamp: businessHours(),
			},
			snap: Snapshot{FailedLoginsLastHour: 5, RecentIPs: []string{"10.0.0.1"}},
			// min(5/10, 1) * 0.30
			wantScore:  0.15,
			wantFactor: "Recent failed login attempts: 5",
		},
		{
			name: "failed logins below threshold contribute nothing",
			ev: event.Event{
				Action: event.ActionLoginFailed, IPAddress: "10.0.0.1",
				Timestamp: businessHours(),
			},
			snap:      Snapshot{FailedLoginsLastHour: 2, RecentIPs: []string{"10.0.0.1"}},
			wantScore: 0,
		},
		{
			name: "off-hours login",
			ev: event.Event{
				Action: event.ActionLogin, IPAddress: "10.0.0.1",
				Timestamp: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
			},
			snap: Snapshot{RecentIPs: []string{"10.0.0.1"}},
			// 0.4 * 0.20
			wantScore:  0.08,
			wantFactor: "Login outside normal hours: 03:00",
		},
		{
			name: "new location",
			ev: event.Event{
				Action: event.ActionLogin, IPAddress: "203.0.113.9",
				Timestamp: businessHours(),
			},
			snap: Snapshot{RecentIPs: []string{"10.0.0.1", "10.0.0.2"}},
			// 0.6 * 0.25
			wantScore:  0.15,
			wantFactor: "Login from new location: 203.0.113.9",
		},
		{
			name: "new user with no IP history is not penalized",
			ev: event.Event{
				Action: event.ActionLogin, IPAddress: "203.0.113.9",
				Timestamp: businessHours(),
			},
			snap:      Snapshot{},
			wantScore: 0,
		},
		{
			name: "high frequency",
			ev: event.Event{
				Action: event.ActionLogin, IPAddress: "10.0.0.1",
				Timestamp: businessHours(),
			},
			snap: Snapshot{EventsLastHour: 60, RecentIPs: []string{"10.0.0.1"}},
			// min(60/100, 1) * 0.15
			wantScore:  0.09,
			wantFactor: "High login frequency: 60 in last hour",
		},
		{
			name: "new device",
			ev: event.Event{
				Action: event.ActionLogin, IPAddress: "10.0.0.1", UserAgent: "curl/8.0",
				Timestamp: businessHours(),
			},
			snap: Snapshot{RecentIPs: []string{"10.0.0.1"}, RecentUserAgents: []string{"Mozilla/5.0"}},
			// 0.5 * 0.10
			wantScore:  0.05,
			wantFactor: "Login from new device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := e.Score(tt.ev, tt.snap)
			if math.Abs(score.Value-tt.wantScore) > 1e-9 {
				t.Errorf("score = %v, want %v (factors: %v)", score.Value, tt.wantScore, score.Factors)
			}
			if tt.wantFactor != "" {
				found := false
				for _, f := range score.Factors {
					if f == tt.wantFactor {
						found = true
					}
				}
				if !found {
					t.Errorf("factors %v missing %q", score.Factors, tt.wantFactor)
				}
			} else if len(score.Factors) != 0 {
				t.Errorf("factors = %v, want none", score.Factors)
			}
		})
	}
}

func TestScoreLoginAllFactorsClamped(t *testing.T) {
	e := newTestEngine()
	ev := event.Event{
		Action: event.ActionLoginFailed, IPAddress: "203.0.113.9", UserAgent: "curl/8.0",
		Timestamp: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
	}
	snap := Snapshot{
		FailedLoginsLastHour: 100,
		EventsLastHour:       500,
		RecentIPs:            []string{"10.0.0.1"},
		RecentUserAgents:     []string{"Mozilla/5.0"},
	}

	score := e.Score(ev, snap)
	// 0.30 + 0.08 + 0.15 + 0.15 + 0.05 = 0.73, all five factors present.
	if math.Abs(score.Value-0.73) > 1e-9 {
		t.Errorf("score = %v, want 0.73", score.Value)
	}
	if len(score.Factors) != 5 {
		t.Errorf("got %d factors, want 5: %v", len(score.Factors), score.Factors)
	}
	if score.Value < 0 || score.Value > 1 {
		t.Errorf("score %v out of [0,1]", score.Value)
	}
}

func TestScoreAPIAccess(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name      string
		ev        event.Event
		snap      Snapshot
		wantScore float64
	}{
		{
			name: "benign request",
			ev: event.Event{
				Action: event.ActionDataAccess, Endpoint: "/api/media/list",
				ResponseStatus: 200, Duration: 20 * time.Millisecond,
				Timestamp: businessHours(),
			},
			wantScore: 0,
		},
		{
			name: "sensitive endpoint",
			ev: event.Event{
				Action: event.ActionAdminAction, Endpoint: "/api/admin/settings",
				ResponseStatus: 200, Timestamp: businessHours(),
			},
			wantScore: 0.3,
		},
		{
			name: "failed request on sensitive endpoint",
			ev: event.Event{
				Action: event.ActionDataAccess, Endpoint: "/api/users/42",
				ResponseStatus: 403, Timestamp: businessHours(),
			},
			wantScore: 0.5,
		},
		{
			name: "slow request",
			ev: event.Event{
				Action: event.ActionDataAccess, Endpoint: "/api/media/list",
				ResponseStatus: 200, Duration: 6 * time.Second,
				Timestamp: businessHours(),
			},
			wantScore: 0.2,
		},
		{
			name: "everything at once caps at 1.0",
			ev: event.Event{
				Action: event.ActionDataExport, Endpoint: "/api/audit/export",
				ResponseStatus: 500, Duration: 10 * time.Second,
				Timestamp: businessHours(),
			},
			snap:      Snapshot{RequestsInBurstWindow: 150},
			wantScore: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := e.Score(tt.ev, tt.snap)
			if math.Abs(score.Value-tt.wantScore) > 1e-9 {
				t.Errorf("score = %v, want %v (factors: %v)", score.Value, tt.wantScore, score.Factors)
			}
		})
	}
}

func TestScoreIdempotent(t *testing.T) {
	e := newTestEngine()
	ev := event.Event{
		Action: event.ActionLoginFailed, IPAddress: "203.0.113.9", UserAgent: "curl/8.0",
		Timestamp: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
	}
	snap := Snapshot{
		FailedLoginsLastHour: 6,
		RecentIPs:            []string{"10.0.0.1"},
		RecentUserAgents:     []string{"Mozilla/5.0"},
	}

	first := e.Score(ev, snap)
	second := e.Score(ev, snap)
	if first.Value != second.Value {
		t.Errorf("scores differ: %v vs %v", first.Value, second.Value)
	}
	if !reflect.DeepEqual(first.Factors, second.Factors) {
		t.Errorf("factor lists differ: %v vs %v", first.Factors, second.Factors)
	}
}

func TestScoreDegradedHistory(t *testing.T) {
	e := newTestEngine()
	ev := event.Event{
		Action: event.ActionLogin, IPAddress: "10.0.0.1",
		Timestamp: businessHours(),
	}

	score := e.Score(ev, Snapshot{Degraded: true})
	if score.Value != 0 {
		t.Errorf("degraded score = %v, want 0", score.Value)
	}
	if len(score.Factors) != 1 || score.Factors[0] != "Risk history unavailable; scored without lookback" {
		t.Errorf("factors = %v, want single degraded-history note", score.Factors)
	}
}
