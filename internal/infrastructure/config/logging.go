package config

import (
	"github.com/bnema/webloop/internal/logging"
)

// LoggerConfig converts the logging section into a logger configuration.
// The rotated file is only enabled when File is set and a log directory
// could be resolved.
func (c LoggingConfig) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Level)
	if c.Format == "json" {
		cfg.Format = "json"
	}
	if !c.File {
		return cfg
	}
	dir, err := GetLogDir()
	if err != nil {
		return cfg
	}
	cfg.File = &logging.RotatorConfig{
		Dir:        dir,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
	return cfg
}
