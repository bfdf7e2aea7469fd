// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	IPAddress string `validate:"required,ip"`
	Category  string `validate:"required,oneof=login api admin"`
	Limit     int    `validate:"gte=1,lte=100"`
}

func TestValidateStructValid(t *testing.T) {
	req := sampleRequest{IPAddress: "10.0.0.1", Category: "login", Limit: 10}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidateStructMissingRequired(t *testing.T) {
	req := sampleRequest{Category: "api", Limit: 5}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "IPAddress is required") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestValidateStructOneOf(t *testing.T) {
	req := sampleRequest{IPAddress: "10.0.0.1", Category: "bogus", Limit: 5}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	req := sampleRequest{Limit: 500}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Fields()) != 3 {
		t.Errorf("expected 3 field errors, got %d: %v", len(err.Fields()), err)
	}
}
