// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrNotConfigured indicates the model has no API key set.
var ErrNotConfigured = errors.New("model API key not configured")

// TransportError represents a failed HTTP exchange: a non-2xx status or a
// network-level failure. The response body text is included when available.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("transport error (HTTP %d): %s", e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("transport error (HTTP %d)", e.Status)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

// Unwrap returns the underlying error, if any.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseShapeError indicates a non-streaming response body that lacks the
// expected choices[0].message.content path.
type ResponseShapeError struct {
	Detail string
}

// Error implements the error interface.
func (e *ResponseShapeError) Error() string {
	if e.Detail != "" {
		return "unexpected response shape: " + e.Detail
	}
	return "unexpected response shape"
}

// StreamError represents a failure mid-stream, preserving the content
// accumulated before the failure. Malformed individual SSE lines never
// produce a StreamError; only a failed read does.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}
