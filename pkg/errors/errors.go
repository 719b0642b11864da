// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Chimera.
// Artifact-local failures (format, io) are recorded and skipped by the engine;
// probe failures degrade to zero scores; degenerate input aborts the run.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Chimera errors for monitoring and run bookkeeping.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled indicates the surrounding context was canceled.
	CodeCanceled ErrorCode = "CANCELED"

	// CodeFormat indicates a malformed artifact container (bad magic,
	// truncated stream, unknown metadata value type).
	CodeFormat ErrorCode = "FORMAT_ERROR"

	// CodeIO indicates a filesystem or archive read failed.
	CodeIO ErrorCode = "IO_ERROR"

	// CodeProbe indicates a behavioral probe against the completion
	// capability failed.
	CodeProbe ErrorCode = "PROBE_ERROR"

	// CodeUnsupported indicates a tensor element type outside the
	// supported decode set.
	CodeUnsupported ErrorCode = "UNSUPPORTED_TYPE"

	// CodeDegenerateInput indicates a run had nothing to work with:
	// zero artifacts discovered, or zero dissected successfully.
	CodeDegenerateInput ErrorCode = "DEGENERATE_INPUT"

	// CodeStore indicates a run-history store error.
	CodeStore ErrorCode = "STORE_ERROR"

	// CodeIndex indicates a similarity-index error.
	CodeIndex ErrorCode = "INDEX_ERROR"
)

// ChimeraError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ChimeraError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int // For the serve surface
}

// Error implements the error interface.
func (e *ChimeraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ChimeraError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ChimeraError) MarshalJSON() ([]byte, error) {
	type Alias ChimeraError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new ChimeraError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *ChimeraError {
	return &ChimeraError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ChimeraError) WithContext(key string, value interface{}) *ChimeraError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *ChimeraError) WithAttribute(key, value string) *ChimeraError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *ChimeraError) WithRecoverable(recoverable bool) *ChimeraError {
	e.Recoverable = recoverable
	return e
}

// AsChimeraError attempts to convert an error to a ChimeraError.
// Returns the error as ChimeraError if it is one, or wraps it otherwise.
func AsChimeraError(err error) *ChimeraError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ChimeraError); ok {
		return ce
	}
	// Wrap unknown error as internal
	return New(CodeInternal, "wrapped error", err)
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *ChimeraError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeToStatusCode maps error codes to HTTP-ish status codes for the
// serve surface.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404 // NOT_FOUND
	case CodeInvalidInput, CodeDegenerateInput:
		return 400 // INVALID_ARGUMENT
	case CodeTimeout:
		return 408 // DEADLINE_EXCEEDED
	case CodeCanceled:
		return 499 // CLIENT_CLOSED_REQUEST
	case CodeFormat, CodeUnsupported:
		return 422 // UNPROCESSABLE_CONTENT
	case CodeProbe, CodeIndex:
		return 502 // BAD_GATEWAY
	default:
		return 500 // INTERNAL
	}
}
