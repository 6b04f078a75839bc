// Package osm provides utilities for interacting with OpenStreetMap APIs.
package osm

import (
	"fmt"
	"net/http"
)

// ErrorCode defines standard error codes for API failures
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"

	// Data errors
	ErrNoResults     ErrorCode = "NO_RESULTS"
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// APIError represents a detailed error from an OSM API interaction
type APIError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Query    string `json:"query,omitempty"`
	Guidance string `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new APIError with the given code and message
func NewError(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:    string(code),
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *APIError) WithQuery(query string) *APIError {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *APIError) WithGuidance(guidance string) *APIError {
	e.Guidance = guidance
	return e
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *APIError {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try reducing the search area or simplifying the query."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The request was invalid. Check your parameters and try again."
	case http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The server encountered an error. This is likely temporary, please try again later."
	case http.StatusServiceUnavailable:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	default:
		code = ErrServiceUnavailable
		guidance = "Please try again later or modify your request parameters."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}
