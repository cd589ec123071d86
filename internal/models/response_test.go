package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimitedResponse(t *testing.T) {
	resp := NewRateLimitedResponse(10, time.Minute, 42)

	assert.Equal(t, "Rate limit exceeded", resp.Error)
	assert.Equal(t, "Maximum 10 requests per minute allowed", resp.Message)
	assert.Equal(t, 42, resp.RetryAfter)
}

func TestNewRateLimitedResponse_WindowFormats(t *testing.T) {
	tests := []struct {
		window time.Duration
		want   string
	}{
		{time.Minute, "Maximum 5 requests per minute allowed"},
		{time.Hour, "Maximum 5 requests per hour allowed"},
		{time.Second, "Maximum 5 requests per second allowed"},
		{30 * time.Second, "Maximum 5 requests per 30s allowed"},
	}

	for _, tt := range tests {
		resp := NewRateLimitedResponse(5, tt.window, 1)
		assert.Equal(t, tt.want, resp.Message)
	}
}

func TestRateLimitedResponse_JSONShape(t *testing.T) {
	data, err := json.Marshal(NewRateLimitedResponse(5, time.Minute, 30))
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	// Field names are a wire contract with SDK clients.
	assert.Contains(t, fields, "error")
	assert.Contains(t, fields, "message")
	assert.Contains(t, fields, "retry_after")
	assert.Equal(t, float64(30), fields["retry_after"])
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("something broke", ErrorCodeInternalError)

	assert.Equal(t, "error", resp.Error)
	assert.Equal(t, "something broke", resp.Message)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestHealthCheckResponse_AddComponent(t *testing.T) {
	resp := NewHealthCheckResponse(StatusHealthy)
	resp.AddComponent("admission", StatusDegraded, "shared store unreachable")

	require.Contains(t, resp.Components, "admission")
	assert.Equal(t, StatusDegraded, resp.Components["admission"].Status)
	assert.Equal(t, "shared store unreachable", resp.Components["admission"].Message)
}
