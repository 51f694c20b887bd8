package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const envPrefix = "WEBLOOP"

// Manager handles configuration loading, watching, and management.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
	configDir string
	// skipNextReload suppresses the watcher reload triggered by our own Save.
	skipNextReload bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithConfigDir reads and writes config.toml in dir instead of the XDG
// config directory.
func WithConfigDir(dir string) ManagerOption {
	return func(m *Manager) { m.configDir = dir }
}

// NewManager creates a new configuration manager.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{viper: viper.New()}
	for _, opt := range opts {
		opt(m)
	}

	if m.configDir == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		m.configDir = dir
	}

	m.viper.SetConfigName("config")
	m.viper.SetConfigType("toml")
	m.viper.AddConfigPath(m.configDir)

	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	// WEBLOOP_LOG_LEVEL and WEBLOOP_LOG_FORMAT are shared with the
	// logger's environment overrides.
	_ = m.viper.BindEnv("logging.level", "WEBLOOP_LOG_LEVEL", "WEBLOOP_LOGGING_LEVEL")
	_ = m.viper.BindEnv("logging.format", "WEBLOOP_LOG_FORMAT", "WEBLOOP_LOGGING_FORMAT")

	m.setDefaults()
	return m, nil
}

// Load reads the config file, creating it with defaults when missing, then
// applies environment overrides and validates the result.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.readConfigFile(); err != nil {
		return err
	}
	config, err := m.unmarshalConfig()
	if err != nil {
		return err
	}
	m.config = config
	return nil
}

func (m *Manager) readConfigFile() error {
	err := m.viper.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := m.createDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create default config: %w", err)
	}
	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf(
			"failed to read newly created config file: %w\nThe config file was created but couldn't be read. Please check the file format",
			err,
		)
	}
	return nil
}

func (m *Manager) unmarshalConfig() (*Config, error) {
	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	normalizeConfig(config)
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Get returns a copy of the current configuration, or the defaults before
// Load succeeded.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return DefaultConfig()
	}
	configCopy := *m.config
	return &configCopy
}

// Save validates cfg and writes it to the config file.
func (m *Manager) Save(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.configDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if m.watching {
		m.skipNextReload = true
	}
	if err := WriteConfigOrdered(cfg, m.ConfigFile()); err != nil {
		m.skipNextReload = false
		return err
	}

	configCopy := *cfg
	m.config = &configCopy
	return nil
}

// ConfigFile returns the path of the managed config file.
func (m *Manager) ConfigFile() string {
	return filepath.Join(m.configDir, configFileName)
}

func (m *Manager) createDefaultConfig() error {
	if err := os.MkdirAll(m.configDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return WriteConfigOrdered(DefaultConfig(), m.ConfigFile())
}

func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file", defaults.Logging.File)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)

	m.viper.SetDefault("loop.control_flow", defaults.Loop.ControlFlow)
	m.viper.SetDefault("loop.wait_interval", defaults.Loop.WaitInterval)
	m.viper.SetDefault("loop.keep_alive", defaults.Loop.KeepAlive)
	m.viper.SetDefault("loop.max_batch", defaults.Loop.MaxBatch)
	m.viper.SetDefault("loop.driver", defaults.Loop.Driver)

	m.viper.SetDefault("webview.user_agent", defaults.WebView.UserAgent)
	m.viper.SetDefault("webview.devtools", defaults.WebView.Devtools)
	m.viper.SetDefault("webview.background_color", defaults.WebView.BackgroundColor)

	m.viper.SetDefault("remote.listen", defaults.Remote.Listen)
	m.viper.SetDefault("remote.token", defaults.Remote.Token)
	m.viper.SetDefault("remote.request_timeout", defaults.Remote.RequestTimeout)
}
