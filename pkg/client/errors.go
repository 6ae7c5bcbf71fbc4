package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrNotObject is returned when a response body is valid JSON but not an object.
	ErrNotObject = errors.New("response body is not a JSON object")

	// ErrTrailingData is returned when a JSON object is followed by more input.
	ErrTrailingData = errors.New("response body has data after the JSON object")
)

// ErrorClass represents a classification of lookup failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that are not a JSON object.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassCanceled represents lookups aborted by context cancellation.
	ErrorClassCanceled ErrorClass = "canceled"
)

// RequestError is the failure of a single API call.
type RequestError struct {
	Target     string
	Endpoint   string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	var msg string
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s %s error (status %d): %s", e.Endpoint, e.Class, e.StatusCode, e.Message)
	} else {
		msg = fmt.Sprintf("%s %s error: %s", e.Endpoint, e.Class, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure is transient (network or server side).
// Callers decide what to do with it; the client itself never retries.
func (e *RequestError) Temporary() bool {
	switch e.Class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to an ErrorClass.
func classifyStatus(code int) ErrorClass {
	switch {
	case code >= 500:
		return ErrorClassServer
	case code >= 400:
		return ErrorClassClient
	default:
		// 1xx/3xx that reached us unresolved are treated as client errors.
		return ErrorClassClient
	}
}
