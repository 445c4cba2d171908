package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapAdapter(t *testing.T) {
	t.Run("basic logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
		require.NoError(t, err)

		logger.Debug("debug message", Field{"key", "value"})
		logger.Info("info message", Field{"count", 42})
		logger.Warn("warn message", Field{"enabled", true})
		logger.Error("error message", errors.New("test error"), Field{"code", "ERR123"})

		output := buf.String()
		assert.Contains(t, output, "DEBUG")
		assert.Contains(t, output, "debug message")
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "info message")
		assert.Contains(t, output, "WARN")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "ERROR")
		assert.Contains(t, output, "error message")
		assert.Contains(t, output, "test error")
	})

	t.Run("json lines", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Format: "json", Output: &buf})
		require.NoError(t, err)

		logger.Info("stored", String("employee", "3f9a2c1b"), Int("attempts", 2))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "stored", entry["msg"])
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "3f9a2c1b", entry["employee"])
		assert.Equal(t, float64(2), entry["attempts"])
	})

	t.Run("console format", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Format: "console", Output: &buf})
		require.NoError(t, err)

		logger.Info("worker started")

		output := buf.String()
		assert.Contains(t, output, "worker started")
		assert.False(t, strings.HasPrefix(output, "{"))
	})

	t.Run("with fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
		require.NoError(t, err)

		logger = logger.WithFields(
			Field{"service", "user-onboarding"},
			Field{"component", "worker"},
		)
		logger.Info("test message", Field{"partition", 3})

		output := buf.String()
		assert.Contains(t, output, "user-onboarding")
		assert.Contains(t, output, "component")
		assert.Contains(t, output, "partition")
	})

	t.Run("with context", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
		require.NoError(t, err)

		ctx := ContextWithCorrelationID(context.Background(), "corr-123")
		ctx = ContextWithRequestID(ctx, "req-456")
		logger.WithContext(ctx).Info("context message")

		output := buf.String()
		assert.Contains(t, output, `"correlation_id":"corr-123"`)
		assert.Contains(t, output, `"request_id":"req-456"`)
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
		require.NoError(t, err)

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message", nil)

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})

	t.Run("prefix", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf, Prefix: "directory"})
		require.NoError(t, err)

		logger.Info("lookup")
		assert.Contains(t, buf.String(), `"logger":"directory"`)
	})
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel("critical"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.WithFields(String("k", "v")).WithContext(context.Background()).Error("ignored", errors.New("x"))
	Sync(logger)
}
