// Copyright 2026 © The Chimera Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the chimera CLI.
package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/jllopis/chimera/pkg/errors"
)

// CLIError wraps ChimeraError with CLI-specific formatting and hints.
type CLIError struct {
	*errors.ChimeraError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(ce *errors.ChimeraError, hint string) *CLIError {
	return &CLIError{
		ChimeraError: ce,
		Hint:         hint,
	}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.ChimeraError == nil {
		return "unknown error"
	}

	msg := e.ChimeraError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// PrintError prints the error to stderr, as a JSON document when the
// --json flag is set.
func (e *CLIError) PrintError(jsonOut bool) {
	if jsonOut {
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]string{
				"code":    string(e.ChimeraError.Code),
				"message": e.ChimeraError.Message,
				"hint":    e.Hint,
			},
		})
		fmt.Fprintln(os.Stderr, string(payload))
		return
	}

	fmt.Fprintf(os.Stderr, "%s: %s\n", FormatErrorCode(e.ChimeraError.Code), e.ChimeraError.Message)
	if e.ChimeraError.Err != nil {
		fmt.Fprintf(os.Stderr, "  Cause: %v\n", e.ChimeraError.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(os.Stderr, "  Hint: %s\n", e.Hint)
	}
}

// fail routes any error through the CLI formatter and exits non-zero.
// Typed errors keep their code and pick up a hint; everything else
// prints plainly.
func fail(jsonOut bool, err error) {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		cliErr.PrintError(jsonOut)
		os.Exit(1)
	}
	var ce *errors.ChimeraError
	if stderrors.As(err, &ce) {
		NewCLIError(ce, hintFor(ce.Code)).PrintError(jsonOut)
		os.Exit(1)
	}
	PrintSimpleError(err, jsonOut)
	os.Exit(1)
}

// hintFor supplies a followup suggestion for codes where one exists.
func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeDegenerateInput:
		return "point chimera at a directory holding .gguf files or tar archives of them"
	case errors.CodeFormat:
		return "the file does not look like a well-formed GGUF container"
	case errors.CodeProbe:
		return "check that the completion endpoint is up and the model is pulled"
	case errors.CodeTimeout:
		return "raise engine.probe_timeout_seconds or provider.timeout_seconds"
	case errors.CodeStore:
		return "check that store.path is writable, or pass --no-store"
	case errors.CodeIndex:
		return "check the qdrant address under index.addr, or pass --no-index"
	case errors.CodeNotFound:
		return "run 'chimera runs' to list what is stored"
	}
	return ""
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	ce := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithRecoverable(false)
	return NewCLIError(ce, "run 'chimera help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	ce := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath).
		WithRecoverable(false)

	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(ce, hint)
}

// NewNotFoundError creates a not found error with CLI hints.
func NewNotFoundError(resource, name string) *CLIError {
	ce := errors.New(errors.CodeNotFound, fmt.Sprintf("%s %q not found", resource, name), nil).
		WithContext("resource", resource).
		WithContext("name", name).
		WithRecoverable(false)
	return NewCLIError(ce, fmt.Sprintf("check that the %s exists; 'chimera runs' lists stored runs", resource))
}

// WrapFileError wraps a filesystem error on a stored output path.
func WrapFileError(err error, path string) *CLIError {
	ce := errors.New(errors.CodeIO, "read stored output", err).
		WithContext("path", path).
		WithRecoverable(false)
	return NewCLIError(ce, "the file may have been moved or deleted since the run")
}

// PrintSimpleError prints errors that carry no code.
func PrintSimpleError(err error, jsonOut bool) {
	if jsonOut {
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]string{"code": "UNKNOWN", "message": err.Error()},
		})
		fmt.Fprintln(os.Stderr, string(payload))
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInternal:
		return "Internal Error"
	case errors.CodeInvalidInput:
		return "Invalid Input"
	case errors.CodeNotFound:
		return "Not Found"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeCanceled:
		return "Canceled"
	case errors.CodeFormat:
		return "Format Error"
	case errors.CodeIO:
		return "I/O Error"
	case errors.CodeProbe:
		return "Probe Error"
	case errors.CodeUnsupported:
		return "Unsupported Type"
	case errors.CodeDegenerateInput:
		return "Degenerate Input"
	case errors.CodeStore:
		return "Store Error"
	case errors.CodeIndex:
		return "Index Error"
	default:
		return string(code)
	}
}
