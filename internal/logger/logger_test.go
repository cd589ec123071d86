package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/models"
	"tradegate/internal/version"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input     string
		expected  slog.Level
		expectErr bool
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "info", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "DEBUG", expected: slog.LevelDebug},
		{input: "Info", expected: slog.LevelInfo},
		{input: "invalid", expectErr: true},
		{input: "", expectErr: true},
	}

	for _, tt := range tests {
		level, err := parseLevel(tt.input)
		if tt.expectErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, level, "input %q", tt.input)
	}
}

func TestSetup_StdoutFormats(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			cfg := models.LoggingConfig{Level: "info", Format: format, Output: "stdout"}

			logger, closer, err := Setup(cfg, version.Info{})
			require.NoError(t, err)
			assert.NotNil(t, logger)
			assert.Nil(t, closer, "stdout needs no closer")
		})
	}
}

func TestSetup_StderrOutput(t *testing.T) {
	cfg := models.LoggingConfig{Level: "info", Format: "json", Output: "stderr"}

	logger, closer, err := Setup(cfg, version.Info{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Nil(t, closer)
}

func TestSetup_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "gateway.log")

	cfg := models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, closer, err := Setup(cfg, version.Info{Version: "v1.2.3"})
	require.NoError(t, err)
	require.NotNil(t, closer, "file output must hand back the file for closing")
	defer closer.Close()

	logger.Info("gate opened", "backend", "redis")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gate opened")
	assert.Contains(t, string(data), "redis")
	assert.Contains(t, string(data), "v1.2.3", "version fields are attached to every record")
}

func TestSetup_FileOutputMissingPath(t *testing.T) {
	cfg := models.LoggingConfig{Level: "info", Format: "json", Output: "file"}

	_, _, err := Setup(cfg, version.Info{})
	assert.Error(t, err)
}

func TestSetup_UnwritableFilePath(t *testing.T) {
	cfg := models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: "/nonexistent/directory/gateway.log",
	}

	_, _, err := Setup(cfg, version.Info{})
	assert.Error(t, err)
}

func TestSetup_InvalidLevel(t *testing.T) {
	cfg := models.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"}

	_, _, err := Setup(cfg, version.Info{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestOpenWriter(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", "anything"} {
		writer, closer, err := openWriter(output, "")
		require.NoError(t, err, "output %q", output)
		assert.NotNil(t, writer)
		assert.Nil(t, closer)
	}

	_, _, err := openWriter("file", "")
	assert.Error(t, err, "file output requires a path")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(handler)

	logger.Info("filtered out")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "filtered out")
	assert.Contains(t, buf.String(), "kept")
}
