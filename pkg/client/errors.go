package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrMissingCredential is returned when no API key is configured.
	// The client fails fast on it before any network call.
	ErrMissingCredential = errors.New("API key not configured")
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassCredential represents a missing API credential.
	ErrorClassCredential ErrorClass = "credential"

	// ErrorClassClient represents 4xx upstream errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx upstream errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents an unparseable success body.
	ErrorClassDecode ErrorClass = "decode"
)

// UpstreamError carries the status and classification of a failed fetch.
type UpstreamError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classifyStatus categorizes an HTTP error status for observability.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// errorPayload wraps a message in the error shape the dispatch layer
// returns to clients.
func errorPayload(message string) map[string]any {
	return map[string]any{"error": message}
}
