// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package main is the entry point for the Watchpost server.
//
// Watchpost ingests security events (logins, API calls, permission changes),
// scores each one against the actor's recent history, flags anomalies, raises
// alerts on brute-force and high-risk patterns, and enforces per-client token
// bucket rate limits.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered env vars, config file, and defaults (Koanf v2)
//  2. Event history: in-memory ring store bounding the lookback window
//  3. Risk engine: weighted factor scoring and anomaly classification
//  4. Alert dispatcher: severity-routed notifiers with a retained ring
//  5. Threat monitor: per-key counters, cooldowns, trend and cleanup sweeps
//  6. Ingest pipeline: synchronous scoring plus an async worker pool
//  7. HTTP server: REST API under /api/v1 plus Prometheus /metrics
//
// All long-running pieces run under a suture supervisor tree so a crash in
// one layer restarts that layer without taking down the API.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops accepting
// connections, drains in-flight requests within the configured timeout, and
// stops the pipeline workers and sweeps.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/watchpost/watchpost/internal/alerts"
	"github.com/watchpost/watchpost/internal/api"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/ingest"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/monitor"
	"github.com/watchpost/watchpost/internal/ratelimit"
	"github.com/watchpost/watchpost/internal/risk"
	"github.com/watchpost/watchpost/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config not yet available, use the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Int("history_capacity", cfg.History.Capacity).
		Int("ingest_workers", cfg.Ingest.Workers).
		Msg("Starting Watchpost")

	store := history.NewMemStore(cfg.History.Capacity)
	engine := risk.NewEngine(cfg.Scoring, cfg.Anomaly)

	var outbound []alerts.Notifier
	if cfg.Alerts.Webhook.Enabled {
		outbound = append(outbound, alerts.NewWebhookNotifier(cfg.Alerts.Webhook))
		logging.Info().Str("url", cfg.Alerts.Webhook.URL).Msg("Webhook notifier registered")
	}
	dispatcher := alerts.NewDispatcher(cfg.Alerts, nil, alerts.NewLogNotifier(), outbound...)

	mon := monitor.New(cfg.Monitor, store, dispatcher, nil)
	pipeline := ingest.New(cfg.Ingest, cfg.Scoring, cfg.Anomaly, engine, store, mon, nil, nil)
	limiter := ratelimit.New(cfg.RateLimit, nil)

	handler := api.NewHandler(cfg, pipeline, mon, limiter, dispatcher, store)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(supervisor.NewRunnerService("ingest-workers", pipeline))
	tree.AddPipelineService(supervisor.NewRunnerService("alert-dispatcher", dispatcher))
	tree.AddMaintenanceService(supervisor.NewRunnerService("trend-sweep", supervisor.RunnerFunc(mon.RunTrendSweep)))
	tree.AddMaintenanceService(supervisor.NewRunnerService("cleanup-sweep", supervisor.RunnerFunc(mon.RunCleanupSweep)))
	tree.AddMaintenanceService(supervisor.NewEvictionService(limiter, cfg.RateLimit.IdleEviction))
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.Timeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Watchpost stopped gracefully")
}
