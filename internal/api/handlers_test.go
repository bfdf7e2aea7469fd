// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/alerts"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/ingest"
	"github.com/watchpost/watchpost/internal/monitor"
	"github.com/watchpost/watchpost/internal/ratelimit"
	"github.com/watchpost/watchpost/internal/risk"
)

type testEnv struct {
	handler    http.Handler
	store      *history.MemStore
	dispatcher *alerts.Dispatcher
	limiter    *ratelimit.Limiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	store := history.NewMemStore(1000)
	dispatcher := alerts.NewDispatcher(cfg.Alerts, nil, alerts.NewLogNotifier())
	mon := monitor.New(cfg.Monitor, store, dispatcher, nil)
	engine := risk.NewEngine(cfg.Scoring, cfg.Anomaly)
	svc := ingest.New(cfg.Ingest, cfg.Scoring, cfg.Anomaly, engine, store, mon, nil, nil)
	limiter := ratelimit.New(cfg.RateLimit, nil)

	h := NewHandler(cfg, svc, mon, limiter, dispatcher, store)
	return &testEnv{
		handler:    NewRouter(h),
		store:      store,
		dispatcher: dispatcher,
		limiter:    limiter,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	if envelope.Status != "ok" {
		t.Fatalf("status = %q, body: %s", envelope.Status, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func TestCreateEventSync(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/events", EventRequest{
		Username:  "alice",
		IPAddress: "10.0.0.1",
		UserAgent: "Mozilla/5.0",
		Action:    "LOGIN",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var got event.Event
	decodeData(t, rec, &got)
	if got.ID == "" || got.CorrelationID == "" {
		t.Errorf("assessed event missing identity: %+v", got)
	}
	if env.store.Len() != 1 {
		t.Errorf("store has %d events, want 1", env.store.Len())
	}
}

func TestCreateEventValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  EventRequest
	}{
		{"malformed ip", EventRequest{Username: "alice", IPAddress: "not-an-ip", Action: "LOGIN"}},
		{"missing action", EventRequest{Username: "alice", IPAddress: "10.0.0.1"}},
		{"absurd status code", EventRequest{Username: "alice", IPAddress: "10.0.0.1", Action: "DATA_ACCESS", ResponseStatus: 9000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/events", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateEventAnonymous(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/events", EventRequest{
		IPAddress: "10.0.0.1",
		Action:    "DATA_ACCESS",
		Endpoint:  "/api/media/list",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("anonymous event status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	var got event.Event
	decodeData(t, rec, &got)
	if got.Username != "" {
		t.Errorf("Username = %q, want empty", got.Username)
	}
}

func TestCreateEventBadJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateEventAsync(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/events?async=true", EventRequest{
		Username:  "alice",
		IPAddress: "10.0.0.1",
		Action:    "DATA_ACCESS",
		Endpoint:  "/api/media/list",
	})
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202 (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestLoginFailureRateLimited(t *testing.T) {
	env := newTestEnv(t)
	payload := LoginFailureRequest{Username: "bob", IPAddress: "9.9.9.9"}

	for i := 0; i < 5; i++ {
		rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/events/login-failure", payload)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d status = %d, want 201 (body: %s)", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/events/login-failure", payload)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th attempt status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
	// Denied attempts never become events.
	if env.store.Len() != 5 {
		t.Errorf("store has %d events, want 5", env.store.Len())
	}
}

func TestSecurityStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.handler, http.MethodGet, "/api/v1/security/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status monitor.Status
	decodeData(t, rec, &status)
	if status.ThreatLevel != monitor.ThreatLow {
		t.Errorf("ThreatLevel = %v, want LOW on empty store", status.ThreatLevel)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.dispatcher.Raise(event.SecurityAlert{
		Type: event.AlertBruteForceIP, Severity: event.SeverityHigh, Timestamp: time.Now(),
	})
	env.dispatcher.Raise(event.SecurityAlert{
		Type: event.AlertAnomalyDetected, Severity: event.SeverityMedium, Timestamp: time.Now(),
	})

	rec := doJSON(t, env.handler, http.MethodGet, "/api/v1/security/alerts", nil)
	var all []event.SecurityAlert
	decodeData(t, rec, &all)
	if len(all) != 2 {
		t.Fatalf("got %d alerts, want 2", len(all))
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/api/v1/security/alerts?severity=HIGH", nil)
	var high []event.SecurityAlert
	decodeData(t, rec, &high)
	if len(high) != 1 || high[0].Type != event.AlertBruteForceIP {
		t.Errorf("HIGH filter returned %+v", high)
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/api/v1/security/alerts?severity=BOGUS", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus severity status = %d, want 400", rec.Code)
	}
}

func TestAlertsSeverityLimit(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 8; i++ {
		env.dispatcher.Raise(event.SecurityAlert{
			Type: event.AlertBruteForceIP, Severity: event.SeverityHigh, Timestamp: time.Now(),
		})
	}

	rec := doJSON(t, env.handler, http.MethodGet, "/api/v1/security/alerts?severity=HIGH&limit=3", nil)
	var high []event.SecurityAlert
	decodeData(t, rec, &high)
	if len(high) != 3 {
		t.Errorf("got %d alerts, want 3", len(high))
	}
}

func TestAlertStatistics(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.Raise(event.SecurityAlert{
		Type: event.AlertBruteForceIP, Severity: event.SeverityHigh, Timestamp: time.Now(),
	})

	rec := doJSON(t, env.handler, http.MethodGet, "/api/v1/security/alerts/statistics", nil)
	var stats alerts.Statistics
	decodeData(t, rec, &stats)
	if stats.Total != 1 || stats.BySeverity["HIGH"] != 1 {
		t.Errorf("statistics = %+v", stats)
	}
}

func TestRiskReportEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		doJSON(t, env.handler, http.MethodPost, "/api/v1/events", EventRequest{
			Username:  "alice",
			IPAddress: "10.0.0.1",
			Action:    "LOGIN",
		})
	}

	rec := doJSON(t, env.handler, http.MethodGet, "/api/v1/security/report?username=alice", nil)
	var report risk.Report
	decodeData(t, rec, &report)
	if report.Username != "alice" || report.TotalActivities != 3 {
		t.Errorf("report = %+v", report)
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/api/v1/security/report", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing username status = %d, want 400", rec.Code)
	}
}

func TestRateLimitCheckEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/ratelimit/login/check?client=desk-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("check %d status = %d", i+1, rec.Code)
		}
		var d ratelimit.Decision
		decodeData(t, rec, &d)
		if d.Remaining != 4-i {
			t.Errorf("check %d remaining = %d, want %d", i+1, d.Remaining, 4-i)
		}
	}

	rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/ratelimit/login/check?client=desk-1", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted check status = %d, want 429", rec.Code)
	}

	rec = doJSON(t, env.handler, http.MethodPost, "/api/v1/ratelimit/bogus/check", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus category status = %d, want 400", rec.Code)
	}
}

func TestRateLimitClearEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		doJSON(t, env.handler, http.MethodPost, "/api/v1/ratelimit/login/check?client=desk-1", nil)
	}
	if rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/ratelimit/login/check?client=desk-1", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected exhausted bucket before clear")
	}

	if rec := doJSON(t, env.handler, http.MethodDelete, "/api/v1/ratelimit/desk-1", nil); rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if rec := doJSON(t, env.handler, http.MethodPost, "/api/v1/ratelimit/login/check?client=desk-1", nil); rec.Code != http.StatusOK {
		t.Errorf("check after clear status = %d, want 200", rec.Code)
	}
}

func TestRecentEventsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 10; i++ {
		doJSON(t, env.handler, http.MethodPost, "/api/v1/events", EventRequest{
			Username:  fmt.Sprintf("user%d", i),
			IPAddress: "10.0.0.1",
			Action:    "LOGIN",
		})
	}

	rec := doJSON(t, env.handler, http.MethodGet, "/api/v1/events?limit=4", nil)
	var events []event.Event
	decodeData(t, rec, &events)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Username != "user9" {
		t.Errorf("newest = %q, want user9", events[0].Username)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.handler, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decodeData(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("health body = %v", body)
	}
}

func TestReadyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.handler, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decodeData(t, rec, &body)
	if body["status"] != "ready" {
		t.Errorf("ready body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("watchpost_")) {
		t.Error("metrics output missing watchpost collectors")
	}
}
