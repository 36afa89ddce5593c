package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZapLogger(zapcore.AddSync(&buf), false, false, zapcore.InfoLevel)
	logger.Debug("hidden")
	logger.Info("unit compiled", zap.String("unit", "Q"), zap.Duration("duration", 1500*time.Millisecond))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), buf.String())
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "unit compiled", entry["msg"])
	require.Equal(t, "Q", entry["unit"])
	require.Equal(t, "1.5s", entry["duration"])
	require.IsType(t, float64(0), entry["time"])
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZapLogger(zapcore.AddSync(&buf), true, true, zapcore.DebugLevel)
	logger.Debug("dead branch", zap.String("unit", "Q"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	require.Contains(t, out, "dead branch")
	require.Contains(t, out, `{"unit": "Q"}`)
	require.Contains(t, out, "logging_test.go", "development mode adds the caller")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	require.Equal(t, zapcore.WarnLevel, level)

	_, err = ParseLevel("loud")
	require.ErrorContains(t, err, `invalid log level "loud"`)
}
