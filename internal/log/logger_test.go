package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/archdistill/internal/config"
)

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, config.LogFormatPretty, "INFO")

	l.Info("found records", "count", 2)

	assert.Contains(t, buf.String(), "INF found records count=2")
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, config.LogFormatJSON, "INFO")

	l.Info("found records", "count", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "found records", entry["msg"])
	assert.Equal(t, float64(2), entry["count"])
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, config.LogFormatJSON, "WARN")

	l.Debug("d")
	l.Info("i")
	assert.Zero(t, buf.Len())

	l.Warn("w")
	l.Error("e")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, config.LogFormatJSON, "DEBUG")

	ctx := WithCommand(WithCorrelationID(context.Background(), "run-1"), "distill")
	l.InfoContext(ctx, "started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry["correlation_id"])
	assert.Equal(t, "distill", entry["command"])
}

func TestLogger_WithContext_NoValues(t *testing.T) {
	l := NewLoggerWithWriter(&bytes.Buffer{}, config.LogFormatJSON, "INFO")
	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestContextAccessors_NotSet(t *testing.T) {
	assert.Equal(t, "", CorrelationID(context.Background()))
	assert.Equal(t, "", Command(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestConfigure_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := Configure(config.NewAppConfigWithOptions(config.WithLogFormat(config.LogFormatJSON)))
	assert.Equal(t, l.Slog(), slog.Default())
}
