package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	Level      zerolog.Level
	Format     string // "json" or "console"
	TimeFormat string
	// Output defaults to os.Stderr.
	Output io.Writer
	// File enables a rotated log file in addition to Output.
	File *RotatorConfig
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:      zerolog.InfoLevel,
		Format:     "console",
		TimeFormat: time.RFC3339,
	}
}

// New creates a new zerolog logger with the given configuration. File
// output is ignored here; use NewWithFile for it.
func New(cfg Config) zerolog.Logger {
	return zerolog.New(consoleOrJSON(cfg)).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

// NewWithFile is New plus the rotated file of cfg.File, always written as
// JSON. The returned closer releases the file; it is a no-op when cfg.File
// is nil.
func NewWithFile(cfg Config) (zerolog.Logger, io.Closer, error) {
	if cfg.File == nil {
		return New(cfg), nopCloser{}, nil
	}
	rotator, err := NewLogRotator(*cfg.File)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	w := zerolog.MultiLevelWriter(consoleOrJSON(cfg), rotator)
	logger := zerolog.New(w).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
	return logger, rotator, nil
}

func consoleOrJSON(cfg Config) io.Writer {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "json" {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: cfg.TimeFormat,
	}
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back
// to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewFromEnv creates a logger based on environment variables
// WEBLOOP_LOG_LEVEL: trace, debug, info, warn, error, off (default: info)
// WEBLOOP_LOG_FORMAT: json, console (default: console)
func NewFromEnv() zerolog.Logger {
	return New(ConfigFromEnv(DefaultConfig()))
}

// ConfigFromEnv overlays the WEBLOOP_LOG_* variables on base.
func ConfigFromEnv(base Config) Config {
	cfg := base
	if level := os.Getenv("WEBLOOP_LOG_LEVEL"); level != "" {
		cfg.Level = ParseLevel(level)
	}
	if format := os.Getenv("WEBLOOP_LOG_FORMAT"); format != "" {
		switch format {
		case "json", "console":
			cfg.Format = format
		}
	}
	return cfg
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
