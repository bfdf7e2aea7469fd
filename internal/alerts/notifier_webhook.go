// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package alerts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/event"
)

// WebhookNotifier POSTs alerts as JSON to a configured endpoint. Posts are
// spaced at least MinInterval apart to avoid hammering the receiver during
// an alert storm.
type WebhookNotifier struct {
	url         string
	minInterval time.Duration
	httpClient  *http.Client

	mu       sync.Mutex
	lastPost time.Time
}

// webhookPayload is the wire shape posted to the endpoint.
type webhookPayload struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	IPAddress string    `json:"ip_address,omitempty"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:         cfg.URL,
		minInterval: cfg.MinInterval,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, alert event.SecurityAlert) error {
	n.throttle()

	body, err := json.Marshal(webhookPayload{
		Type:      string(alert.Type),
		Message:   alert.Message,
		Severity:  string(alert.Severity),
		IPAddress: alert.IPAddress,
		Username:  alert.Username,
		Timestamp: alert.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// throttle sleeps long enough to keep posts MinInterval apart.
func (n *WebhookNotifier) throttle() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if wait := n.minInterval - time.Since(n.lastPost); wait > 0 {
		time.Sleep(wait)
	}
	n.lastPost = time.Now()
}
