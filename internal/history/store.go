// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package history stores recently processed security events and answers the
// lookback queries the risk engine and threat monitor depend on.
package history

import (
	"context"
	"time"

	"github.com/watchpost/watchpost/internal/event"
)

// Store is the read/write surface over processed events. Implementations
// must be safe for concurrent use. Query methods return an error so that
// callers can degrade gracefully when a backing store is unavailable.
type Store interface {
	// Add appends a processed event. Oldest events may be evicted once the
	// store reaches its capacity.
	Add(ctx context.Context, e event.Event) error

	// CountEvents counts all events at or after since.
	CountEvents(ctx context.Context, since time.Time) (int, error)

	// CountFailedLoginsByUser counts LOGIN_FAILED events for a username
	// at or after since.
	CountFailedLoginsByUser(ctx context.Context, username string, since time.Time) (int, error)

	// CountFailedLoginsByIP counts LOGIN_FAILED events from an IP address
	// at or after since.
	CountFailedLoginsByIP(ctx context.Context, ip string, since time.Time) (int, error)

	// CountFailedLogins counts all LOGIN_FAILED events at or after since.
	CountFailedLogins(ctx context.Context, since time.Time) (int, error)

	// CountHighRisk counts events whose level is HIGH or CRITICAL at or
	// after since.
	CountHighRisk(ctx context.Context, since time.Time) (int, error)

	// CountAnomalies counts events flagged anomalous at or after since.
	CountAnomalies(ctx context.Context, since time.Time) (int, error)

	// CountEventsByUser counts all events for a username at or after since.
	CountEventsByUser(ctx context.Context, username string, since time.Time) (int, error)

	// RecentIPs returns the distinct source IPs of the user's most recent
	// events, newest first, at most limit entries.
	RecentIPs(ctx context.Context, username string, limit int) ([]string, error)

	// RecentUserAgents returns the distinct user agents of the user's most
	// recent events, newest first, at most limit entries.
	RecentUserAgents(ctx context.Context, username string, limit int) ([]string, error)

	// EventsByUser returns the user's events newest first, at most limit.
	EventsByUser(ctx context.Context, username string, limit int) ([]event.Event, error)

	// Recent returns the most recent events newest first, at most limit.
	Recent(ctx context.Context, limit int) ([]event.Event, error)
}
