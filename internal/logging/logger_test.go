package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("WEBLOOP_LOG_LEVEL", "debug")
	t.Setenv("WEBLOOP_LOG_FORMAT", "json")

	cfg := ConfigFromEnv(DefaultConfig())
	assert.Equal(t, zerolog.DebugLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	t.Setenv("WEBLOOP_LOG_FORMAT", "xml")
	assert.Equal(t, "console", ConfigFromEnv(DefaultConfig()).Format, "unknown formats are ignored")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Level = zerolog.WarnLevel
	cfg.Output = &buf

	logger := New(cfg)
	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "eventloop").Msg("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "eventloop", entry["component"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf

	logger := New(cfg)
	logger.Info().Msg("hello console")
	assert.Contains(t, buf.String(), "hello console")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNewWithFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	cfg.File = &RotatorConfig{Dir: dir}

	logger, closer, err := NewWithFile(cfg)
	require.NoError(t, err)
	logger.Info().Msg("to both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "webloop.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to both"`)
	assert.Contains(t, buf.String(), "to both")

	cfg.File = nil
	_, closer, err = NewWithFile(cfg)
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithContext(context.Background(), logger)
	ctx = WithComponent(ctx, "remote")
	ctx = WithConnID(ctx, "c-1")
	ctx = WithRequest(ctx, "r-9", "ping")
	FromContext(ctx).Info().Msg("ctx")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "remote", entry["component"])
	assert.Equal(t, "c-1", entry["conn_id"])
	assert.Equal(t, "r-9", entry["request_id"])
	assert.Equal(t, "ping", entry["type"])

	// A bare context yields a disabled logger rather than nil.
	require.NotNil(t, FromContext(context.Background()))
}
