// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent
// formatting: machine-readable error codes, RFC3339 timestamps, and
// omitempty on optional fields.
package models

import (
	"fmt"
	"time"
)

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string    `json:"error"`                // Error type (always "error")
	Message   string    `json:"message"`              // Human-readable error description
	Code      string    `json:"code,omitempty"`       // Machine-readable error code
	Timestamp time.Time `json:"timestamp"`            // Error occurrence time
	RequestID string    `json:"request_id,omitempty"` // Unique request identifier
}

// RateLimitedResponse is the body of a 429 response from the admission
// gate. The shape is part of the wire contract: SDK clients parse the
// retry_after field to schedule their retry.
type RateLimitedResponse struct {
	Error      string `json:"error"`       // Always "Rate limit exceeded"
	Message    string `json:"message"`     // "Maximum <limit> requests per <window> allowed"
	RetryAfter int    `json:"retry_after"` // Seconds until the window resets, minimum 1
}

// NewRateLimitedResponse builds the deny body for a route budget of
// limit requests per window.
func NewRateLimitedResponse(limit int, window time.Duration, retryAfter int) *RateLimitedResponse {
	return &RateLimitedResponse{
		Error:      "Rate limit exceeded",
		Message:    fmt.Sprintf("Maximum %d requests per %s allowed", limit, formatWindow(window)),
		RetryAfter: retryAfter,
	}
}

// formatWindow renders common window lengths the way operators expect to
// read them ("minute", "hour") and everything else as a duration string.
func formatWindow(window time.Duration) string {
	switch window {
	case time.Minute:
		return "minute"
	case time.Hour:
		return "hour"
	case time.Second:
		return "second"
	default:
		return window.String()
	}
}

// AdmissionStatsResponse is the read-only operational snapshot of the
// admission gate, served for dashboards. No field mutates gate state.
type AdmissionStatsResponse struct {
	Backend        string         `json:"backend"`         // "redis", "sql" or "local"
	ActiveLimits   int            `json:"active_limits"`   // Currently tracked (client, route) buckets
	DefaultLimit   int            `json:"default_limit"`   // Requests per window for unmapped routes
	WindowSeconds  int            `json:"window_seconds"`  // Window length
	EndpointLimits map[string]int `json:"endpoint_limits"` // Per-route overrides
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health status constants.
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusDegraded  = "degraded"  // Partial functionality (e.g. shared counter store down)
	StatusUnhealthy = "unhealthy" // Major system issues
)

// Standard HTTP error codes, upper-case with underscores, machine-readable.
const (
	ErrorCodeNotFound       = "NOT_FOUND"       // 404: Resource doesn't exist
	ErrorCodeInvalidRequest = "INVALID_REQUEST" // 400/405: Invalid request data or method
	ErrorCodeInternalError  = "INTERNAL_ERROR"  // 500: Server-side error
	ErrorCodeNotImplemented = "NOT_IMPLEMENTED" // 501: Downstream service not wired up
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
