package observability

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/models"
	"tradegate/internal/version"
)

func TestMetricsServer_ServesPrometheusEndpoint(t *testing.T) {
	provider, err := Setup(
		models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 0},
		models.ObservabilityConfig{ServiceName: "tradegate-test"},
		version.Info{Version: "test"},
	)
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	port := freePort(t)
	server := NewMetricsServer(port, "/metrics", provider)

	go server.Start()
	defer server.Shutdown(context.Background())

	resp := waitForEndpoint(t, fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestMetricsServer_Shutdown(t *testing.T) {
	server := NewMetricsServer(freePort(t), "/metrics", nil)
	go server.Start()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitForEndpoint(t *testing.T, url string) *http.Response {
	t.Helper()
	var lastErr error
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil {
			return resp
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("metrics endpoint never came up: %v", lastErr)
	return nil
}
