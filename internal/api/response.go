// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/logging"
)

// APIResponse is the envelope for all JSON responses.
type APIResponse struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     *APIError `json:"error,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fields  any    `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(&APIResponse{
		Status:    "ok",
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		logging.Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Err(err).Msg("failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Err(err).Str("code", code).Msg("api error")
	}

	w.Header().Set("Content-Type", "application/json")
	body, marshalErr := json.Marshal(&APIResponse{
		Status:    "error",
		Timestamp: time.Now(),
		Error:     &APIError{Code: code, Message: message},
	})
	if marshalErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, writeErr := w.Write(body); writeErr != nil {
		logging.Err(writeErr).Msg("failed to write error response")
	}
}

func respondValidationError(w http.ResponseWriter, fields any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(&APIResponse{
		Status:    "error",
		Timestamp: time.Now(),
		Error: &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  fields,
		},
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(body)
}
