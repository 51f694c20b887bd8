package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	return m
}

func TestSetDefaults(t *testing.T) {
	mgr := &Manager{viper: viper.New()}
	mgr.setDefaults()

	assert.Equal(t, "wait", mgr.viper.GetString("loop.control_flow"))
	assert.Equal(t, 64, mgr.viper.GetInt("loop.max_batch"))
	assert.Equal(t, "127.0.0.1:7455", mgr.viper.GetString("remote.listen"))
	assert.Equal(t, 30*time.Second, mgr.viper.GetDuration("remote.request_timeout"))
}

func TestLoad_CreatesDefaultFile(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())

	_, err := os.Stat(m.ConfigFile())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), m.Get())
}

func TestLoad_ReadsFile(t *testing.T) {
	m := newTestManager(t)
	content := `
[loop]
  control_flow = "Poll"
  wait_interval = "25ms"
  max_batch = 8
  driver = "headless"

[webview]
  user_agent = "WebviewJS"
  background_color = "#112233"

[remote]
  listen = "127.0.0.1:9000"
  request_timeout = "5s"
`
	require.NoError(t, os.WriteFile(m.ConfigFile(), []byte(content), filePerm))
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, "poll", cfg.Loop.ControlFlow)
	assert.Equal(t, 25*time.Millisecond, cfg.Loop.WaitInterval)
	assert.Equal(t, 8, cfg.Loop.MaxBatch)
	assert.Equal(t, "headless", cfg.Loop.Driver)
	assert.Equal(t, "WebviewJS", cfg.WebView.UserAgent)
	assert.Equal(t, "#112233", cfg.WebView.BackgroundColor)
	assert.Equal(t, "127.0.0.1:9000", cfg.Remote.Listen)
	assert.Equal(t, 5*time.Second, cfg.Remote.RequestTimeout)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WEBLOOP_LOOP_MAX_BATCH", "3")
	t.Setenv("WEBLOOP_LOG_LEVEL", "debug")
	t.Setenv("WEBLOOP_REMOTE_TOKEN", "secret")

	m := newTestManager(t)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, 3, cfg.Loop.MaxBatch)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "secret", cfg.Remote.Token)
}

func TestLoad_InvalidFile(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.WriteFile(m.ConfigFile(), []byte("[loop]\n  max_batch = 0\n"), filePerm))

	err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loop.max_batch")
	// A failed load leaves the defaults in place.
	assert.Equal(t, DefaultConfig(), m.Get())
}

func TestGet_ReturnsCopy(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())

	cfg := m.Get()
	cfg.Loop.MaxBatch = 1
	assert.Equal(t, defaultMaxBatch, m.Get().Loop.MaxBatch)
}

func TestSave_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())

	cfg := m.Get()
	cfg.Loop.ControlFlow = "wait_until"
	cfg.Loop.WaitInterval = 40 * time.Millisecond
	cfg.Remote.Token = "t0k3n"
	require.NoError(t, m.Save(cfg))

	reloaded, err := NewManager(WithConfigDir(filepath.Dir(m.ConfigFile())))
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, cfg, reloaded.Get())
}

func TestSave_RejectsInvalid(t *testing.T) {
	m := newTestManager(t)
	cfg := DefaultConfig()
	cfg.WebView.BackgroundColor = "red"

	err := m.Save(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webview.background_color")
	_, statErr := os.Stat(m.ConfigFile())
	assert.True(t, os.IsNotExist(statErr))
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())

	changed := make(chan *Config, 4)
	m.OnConfigChange(func(cfg *Config) { changed <- cfg })
	require.NoError(t, m.Watch())
	require.NoError(t, m.Watch(), "second Watch is a no-op")

	cfg := DefaultConfig()
	cfg.Loop.MaxBatch = 5
	data, err := MarshalTOML(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(m.ConfigFile(), data, filePerm))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-changed:
			if got.Loop.MaxBatch == 5 {
				assert.Equal(t, 5, m.Get().Loop.MaxBatch)
				return
			}
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}

func TestLoggerConfig(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	section := DefaultConfig().Logging
	section.Level = "debug"
	section.Format = "json"
	cfg := section.LoggerConfig()
	assert.Equal(t, "json", cfg.Format)
	assert.Nil(t, cfg.File)

	section.File = true
	cfg = section.LoggerConfig()
	require.NotNil(t, cfg.File)
	assert.Equal(t, "logs", filepath.Base(cfg.File.Dir))
	assert.Equal(t, defaultLogMaxBackups, cfg.File.MaxBackups)
}
