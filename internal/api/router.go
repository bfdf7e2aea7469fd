// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchpost/watchpost/internal/metrics"
)

// Transport-level request ceilings. These guard the HTTP listener itself;
// the domain rate limiter gates admission per client and category.
const (
	generalRequestsPerMinute = 600
	healthRequestsPerMinute  = 1000
)

// NewRouter wires the HTTP surface onto a chi router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(healthRequestsPerMinute, time.Minute))
		r.Get("/", h.Health)
		r.Get("/live", h.Health)
		r.Get("/ready", h.Ready)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(generalRequestsPerMinute, time.Minute))
		r.Use(compression)

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Post("/login-failure", h.LoginFailure)
			r.Get("/", h.RecentEvents)
		})

		r.Route("/security", func(r chi.Router) {
			r.Get("/status", h.SecurityStatus)
			r.Get("/alerts", h.Alerts)
			r.Get("/alerts/statistics", h.AlertStatistics)
			r.Get("/report", h.RiskReport)
		})

		r.Route("/ratelimit", func(r chi.Router) {
			r.Post("/{category}/check", h.RateLimitCheck)
			r.Delete("/{client}", h.RateLimitClear)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestMetrics records request counts and latency per route pattern.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
