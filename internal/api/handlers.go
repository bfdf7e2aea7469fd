// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package api exposes the HTTP surface: event ingestion, security status,
// alert queries, per-user risk reports, and rate-limit administration.
package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/alerts"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/ingest"
	"github.com/watchpost/watchpost/internal/monitor"
	"github.com/watchpost/watchpost/internal/ratelimit"
	"github.com/watchpost/watchpost/internal/validation"
)

// Handler carries the dependencies behind the HTTP surface.
type Handler struct {
	cfg        *config.Config
	ingest     *ingest.Service
	monitor    *monitor.Monitor
	limiter    *ratelimit.Limiter
	dispatcher *alerts.Dispatcher
	store      history.Store
	startTime  time.Time
}

func NewHandler(cfg *config.Config, svc *ingest.Service, mon *monitor.Monitor,
	limiter *ratelimit.Limiter, dispatcher *alerts.Dispatcher, store history.Store) *Handler {
	return &Handler{
		cfg:        cfg,
		ingest:     svc,
		monitor:    mon,
		limiter:    limiter,
		dispatcher: dispatcher,
		store:      store,
		startTime:  time.Now(),
	}
}

// EventRequest is the inbound shape for POST /api/v1/events.
// Username may be empty: anonymous and pre-authentication events carry no
// client identity.
type EventRequest struct {
	Username       string            `json:"username" validate:"omitempty,max=255"`
	IPAddress      string            `json:"ip_address" validate:"required,ip"`
	UserAgent      string            `json:"user_agent" validate:"max=1024"`
	SessionID      string            `json:"session_id" validate:"max=255"`
	CorrelationID  string            `json:"correlation_id" validate:"max=64"`
	Action         string            `json:"action" validate:"required,max=64"`
	Outcome        string            `json:"outcome" validate:"omitempty,oneof=SUCCESS FAILURE BLOCKED WARNING"`
	Details        string            `json:"details" validate:"max=4096"`
	Endpoint       string            `json:"endpoint" validate:"max=2048"`
	HTTPMethod     string            `json:"http_method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	RequestParams  map[string]string `json:"request_params"`
	ResponseStatus int               `json:"response_status" validate:"gte=0,lte=599"`
	DurationMs     int64             `json:"duration_ms" validate:"gte=0"`
}

func (r *EventRequest) toEvent() event.Event {
	var params string
	if len(r.RequestParams) > 0 {
		keys := make([]string, 0, len(r.RequestParams))
		for k := range r.RequestParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+r.RequestParams[k])
		}
		params = strings.Join(pairs, "&")
	}
	return event.Event{
		CorrelationID:  r.CorrelationID,
		Username:       r.Username,
		IPAddress:      r.IPAddress,
		UserAgent:      r.UserAgent,
		SessionID:      r.SessionID,
		Action:         event.Action(r.Action),
		Outcome:        event.Outcome(r.Outcome),
		Details:        r.Details,
		Endpoint:       r.Endpoint,
		HTTPMethod:     r.HTTPMethod,
		RequestParams:  params,
		ResponseStatus: r.ResponseStatus,
		Duration:       time.Duration(r.DurationMs) * time.Millisecond,
	}
}

// CreateEvent ingests one security event. The default path processes
// synchronously and returns the assessed event; async=true enqueues for the
// worker pool and returns 202, or 503 when the queue is saturated.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", err)
		return
	}
	if errs := validation.ValidateStruct(&req); errs != nil {
		respondValidationError(w, errs.Fields())
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if !h.ingest.Submit(req.toEvent()) {
			respondError(w, http.StatusServiceUnavailable, "QUEUE_FULL", "ingest queue is saturated", nil)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"queued": "true"})
		return
	}

	assessed := h.ingest.Process(r.Context(), req.toEvent())
	respondJSON(w, http.StatusCreated, assessed)
}

// LoginFailureRequest is the inbound shape for POST /api/v1/events/login-failure.
type LoginFailureRequest struct {
	Username  string `json:"username" validate:"required,max=255"`
	IPAddress string `json:"ip_address" validate:"required,ip"`
	UserAgent string `json:"user_agent" validate:"max=1024"`
	Details   string `json:"details" validate:"max=4096"`
}

// LoginFailure records a failed login attempt. Admission runs through the
// login token bucket keyed by source IP before the event is processed.
func (h *Handler) LoginFailure(w http.ResponseWriter, r *http.Request) {
	var req LoginFailureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", err)
		return
	}
	if errs := validation.ValidateStruct(&req); errs != nil {
		respondValidationError(w, errs.Fields())
		return
	}

	decision := h.limiter.Allow(ratelimit.CategoryLogin, req.IPAddress)
	writeRateLimitHeaders(w, decision)
	if !decision.Allowed {
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many login attempts", nil)
		return
	}

	assessed := h.ingest.Process(r.Context(), event.Event{
		Username:  req.Username,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Action:    event.ActionLoginFailed,
		Outcome:   event.OutcomeFailure,
		Details:   req.Details,
	})
	respondJSON(w, http.StatusCreated, assessed)
}

// RecentEvents returns the most recently processed events, newest first.
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	events, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "event lookup failed", err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// SecurityStatus reports the current aggregate threat posture.
func (h *Handler) SecurityStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.CurrentStatus(r.Context()))
}

// Alerts returns recent alerts, optionally filtered by severity.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if sev := r.URL.Query().Get("severity"); sev != "" {
		severity := event.Severity(sev)
		if !event.ValidSeverity(severity) {
			respondError(w, http.StatusBadRequest, "INVALID_SEVERITY",
				fmt.Sprintf("unknown severity %q", sev), nil)
			return
		}
		respondJSON(w, http.StatusOK, h.dispatcher.BySeverity(severity, limit))
		return
	}
	respondJSON(w, http.StatusOK, h.dispatcher.Recent(limit))
}

// AlertStatistics summarizes retained alerts inside the statistics window.
func (h *Handler) AlertStatistics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.dispatcher.Statistics())
}

// RiskReport builds a per-user risk assessment over a trailing window.
func (h *Handler) RiskReport(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		respondError(w, http.StatusBadRequest, "MISSING_USERNAME", "username query parameter is required", nil)
		return
	}
	hours := queryInt(r, "hours", 24)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	report, err := h.monitor.Report(r.Context(), username, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "report generation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// RateLimitCheck consumes one token for the client in the path category.
// The client defaults to the request's remote address.
func (h *Handler) RateLimitCheck(w http.ResponseWriter, r *http.Request) {
	category, ok := ratelimit.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_CATEGORY",
			fmt.Sprintf("unknown rate limit category %q", chi.URLParam(r, "category")), nil)
		return
	}

	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		clientID = r.RemoteAddr
	}

	decision := h.limiter.Allow(category, clientID)
	writeRateLimitHeaders(w, decision)
	if !decision.Allowed {
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
		return
	}
	respondJSON(w, http.StatusOK, decision)
}

// RateLimitClear resets all category buckets for a client.
func (h *Handler) RateLimitClear(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")
	if clientID == "" {
		respondError(w, http.StatusBadRequest, "MISSING_CLIENT", "client path parameter is required", nil)
		return
	}
	h.limiter.Clear(clientID)
	respondJSON(w, http.StatusOK, map[string]string{"cleared": clientID})
}

// Health reports process liveness and uptime.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(h.startTime).String(),
	})
}

// Ready reports whether the event store is answering queries.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.CountEvents(r.Context(), time.Now().Add(-time.Minute)); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "event store is not answering", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
