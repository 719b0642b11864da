// Copyright 2026 © The Chimera Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	"github.com/jllopis/chimera/pkg/errors"
)

func TestCLIErrorFormat(t *testing.T) {
	ce := errors.New(errors.CodeStore, "open run store", nil)
	err := NewCLIError(ce, "check the path")
	msg := err.Error()
	if !strings.Contains(msg, "open run store") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "Hint: check the path") {
		t.Errorf("hint missing: %q", msg)
	}
}

func TestHintForCoversRunFailures(t *testing.T) {
	for _, code := range []errors.ErrorCode{
		errors.CodeDegenerateInput,
		errors.CodeProbe,
		errors.CodeStore,
		errors.CodeIndex,
		errors.CodeNotFound,
	} {
		if hintFor(code) == "" {
			t.Errorf("no hint for %s", code)
		}
	}
	if hintFor(errors.CodeInternal) != "" {
		t.Error("internal errors should carry no hint")
	}
}

func TestFormatErrorCode(t *testing.T) {
	if got := FormatErrorCode(errors.CodeDegenerateInput); got != "Degenerate Input" {
		t.Errorf("got %q", got)
	}
	if got := FormatErrorCode(errors.ErrorCode("WEIRD")); got != "WEIRD" {
		t.Errorf("got %q", got)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("run", "abc123")
	if err.ChimeraError.Code != errors.CodeNotFound {
		t.Errorf("code = %s", err.ChimeraError.Code)
	}
	if !strings.Contains(err.ChimeraError.Message, "abc123") {
		t.Errorf("message = %q", err.ChimeraError.Message)
	}
	if err.Hint == "" {
		t.Error("hint missing")
	}
}
