// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package alerts records raised security alerts and forwards them to
// notification channels. A fixed-capacity ring keeps the most recent
// alerts for the dashboard; forwarding is asynchronous through a bounded
// queue so raising an alert never blocks the caller.
package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/event"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
)

// Notifier delivers an alert over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert event.SecurityAlert) error
}

// Statistics summarizes alerts retained in the ring inside the
// configured window.
type Statistics struct {
	Window     time.Duration  `json:"window"`
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByType     map[string]int `json:"by_type"`
}

// Dispatcher buffers raised alerts and fans them out to notifiers.
type Dispatcher struct {
	cfg config.AlertsConfig
	now func() time.Time

	mu     sync.RWMutex
	buffer []event.SecurityAlert
	head   int
	size   int

	queue  chan event.SecurityAlert
	routes map[event.Severity][]Notifier
}

// NewDispatcher builds a dispatcher with the given notification channels.
// A channel receives an alert when its severity appears in the channel's
// route set; the log channel is routed every severity, outbound channels
// only HIGH and CRITICAL. now is injectable for tests; nil means wall
// clock.
func NewDispatcher(cfg config.AlertsConfig, now func() time.Time, logChannel Notifier, outbound ...Notifier) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	d := &Dispatcher{
		cfg:    cfg,
		now:    now,
		buffer: make([]event.SecurityAlert, cfg.BufferCapacity),
		queue:  make(chan event.SecurityAlert, cfg.QueueSize),
		routes: make(map[event.Severity][]Notifier),
	}

	for _, sev := range []event.Severity{event.SeverityLow, event.SeverityMedium, event.SeverityHigh, event.SeverityCritical} {
		if logChannel != nil {
			d.routes[sev] = append(d.routes[sev], logChannel)
		}
	}
	for _, n := range outbound {
		d.routes[event.SeverityHigh] = append(d.routes[event.SeverityHigh], n)
		d.routes[event.SeverityCritical] = append(d.routes[event.SeverityCritical], n)
	}
	return d
}

// Raise records the alert and queues it for delivery. When the delivery
// queue is full the alert is still retained in the ring but the
// notification is dropped with a warning.
func (d *Dispatcher) Raise(alert event.SecurityAlert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = d.now()
	}

	d.mu.Lock()
	tail := (d.head + d.size) % len(d.buffer)
	d.buffer[tail] = alert
	if d.size < len(d.buffer) {
		d.size++
	} else {
		d.head = (d.head + 1) % len(d.buffer)
	}
	d.mu.Unlock()

	metrics.AlertsRaised.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()

	select {
	case d.queue <- alert:
	default:
		metrics.NotificationsSent.WithLabelValues("queue", "dropped").Inc()
		logging.Warn().
			Str("alert_type", string(alert.Type)).
			Str("severity", string(alert.Severity)).
			Msg("alert notification queue full, dropping delivery")
	}
}

// Recent returns up to limit retained alerts, newest first.
func (d *Dispatcher) Recent(limit int) []event.SecurityAlert {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if limit <= 0 || limit > d.size {
		limit = d.size
	}
	out := make([]event.SecurityAlert, 0, limit)
	for i := d.size - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, d.buffer[(d.head+i)%len(d.buffer)])
	}
	return out
}

// BySeverity returns up to limit retained alerts of the given severity,
// newest first. A non-positive limit returns every match.
func (d *Dispatcher) BySeverity(severity event.Severity, limit int) []event.SecurityAlert {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if limit <= 0 || limit > d.size {
		limit = d.size
	}
	var out []event.SecurityAlert
	for i := d.size - 1; i >= 0 && len(out) < limit; i-- {
		a := d.buffer[(d.head+i)%len(d.buffer)]
		if a.Severity == severity {
			out = append(out, a)
		}
	}
	return out
}

// Statistics aggregates retained alerts inside the statistics window.
func (d *Dispatcher) Statistics() Statistics {
	cutoff := d.now().Add(-d.cfg.StatisticsWindow)

	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := Statistics{
		Window:     d.cfg.StatisticsWindow,
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}
	for i := 0; i < d.size; i++ {
		a := d.buffer[(d.head+i)%len(d.buffer)]
		if a.Timestamp.Before(cutoff) {
			continue
		}
		stats.Total++
		stats.BySeverity[string(a.Severity)]++
		stats.ByType[string(a.Type)]++
	}
	return stats
}

// RunWithContext drains the delivery queue until the context is canceled.
// Notifier failures are logged and never stop the loop.
func (d *Dispatcher) RunWithContext(ctx context.Context) error {
	logging.Info().Int("queue_size", d.cfg.QueueSize).Msg("alert dispatcher started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("alert dispatcher stopping")
			return ctx.Err()
		case alert := <-d.queue:
			d.deliver(ctx, alert)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alert event.SecurityAlert) {
	for _, n := range d.routes[alert.Severity] {
		if err := n.Notify(ctx, alert); err != nil {
			metrics.NotificationsSent.WithLabelValues(n.Name(), "error").Inc()
			logging.Err(err).
				Str("channel", n.Name()).
				Str("alert_type", string(alert.Type)).
				Msg("alert notification failed")
			continue
		}
		metrics.NotificationsSent.WithLabelValues(n.Name(), "ok").Inc()
	}
}
