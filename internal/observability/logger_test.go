package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "info", "json")

	log.Info("test message", slog.String("key", "value"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "info", "text")

	log.Info("test message", slog.String("key", "value"))

	out := buf.String()
	assert.Contains(t, out, "msg=\"test message\"")
	assert.Contains(t, out, "key=value")
}

func TestNewLogger_LogLevels(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		debugLogged bool
		infoLogged  bool
		warnLogged  bool
	}{
		{"debug", "debug", true, true, true},
		{"info", "info", false, true, true},
		{"warn", "warn", false, false, true},
		{"error", "error", false, false, false},
		{"unknown_defaults_to_info", "verbose", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewLogger(&buf, tt.level, "text")

			log.Debug("debug-line")
			log.Info("info-line")
			log.Warn("warn-line")

			out := buf.String()
			assert.Equal(t, tt.debugLogged, strings.Contains(out, "debug-line"))
			assert.Equal(t, tt.infoLogged, strings.Contains(out, "info-line"))
			assert.Equal(t, tt.warnLogged, strings.Contains(out, "warn-line"))
		})
	}
}

func TestNewLogger_AddSourceOption(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "debug", "json")

	log.Debug("with source")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "source")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	previous := logger
	logger = NewLogger(&buf, "info", "json")
	defer func() { logger = previous }()

	t.Run("no_values", func(t *testing.T) {
		buf.Reset()
		FromContext(context.Background()).Info("plain")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.NotContains(t, entry, "request_id")
		assert.NotContains(t, entry, "client_id")
	})

	t.Run("includes_request_and_client_id", func(t *testing.T) {
		buf.Reset()
		ctx := WithClientID(WithRequestID(context.Background(), "req-1"), "client-1")
		FromContext(ctx).Info("tagged")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "req-1", entry["request_id"])
		assert.Equal(t, "client-1", entry["client_id"])
	})

	t.Run("empty_values_are_ignored", func(t *testing.T) {
		buf.Reset()
		ctx := WithClientID(WithRequestID(context.Background(), ""), "")
		FromContext(ctx).Info("empty")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.NotContains(t, entry, "request_id")
		assert.NotContains(t, entry, "client_id")
	})
}

func TestFromContext_Fallback(t *testing.T) {
	previous := logger
	logger = nil
	defer func() { logger = previous }()

	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}
