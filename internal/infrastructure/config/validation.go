package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/webloop/internal/domain/validation"
)

// validateConfig validates configuration values.
func validateConfig(config *Config) error {
	var validationErrors []string

	validationErrors = append(validationErrors, validateLogging(config)...)
	validationErrors = append(validationErrors, validateLoop(config)...)
	validationErrors = append(validationErrors, validateWebView(config)...)
	validationErrors = append(validationErrors, validateRemote(config)...)

	if len(validationErrors) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(validationErrors, "\n  - "))
	}
	return nil
}

func validateLogging(config *Config) []string {
	var validationErrors []string
	switch config.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "off", "":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf(
			"logging.level must be one of: trace, debug, info, warn, error, off (got: %s)",
			config.Logging.Level,
		))
	}
	switch config.Logging.Format {
	case "console", "json", "":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf(
			"logging.format must be one of: console, json (got: %s)",
			config.Logging.Format,
		))
	}
	if config.Logging.MaxSizeMB <= 0 {
		validationErrors = append(validationErrors, "logging.max_size_mb must be positive")
	}
	if config.Logging.MaxBackups < 0 {
		validationErrors = append(validationErrors, "logging.max_backups must be non-negative")
	}
	if config.Logging.MaxAgeDays < 0 {
		validationErrors = append(validationErrors, "logging.max_age_days must be non-negative")
	}
	return validationErrors
}

func validateLoop(config *Config) []string {
	var validationErrors []string
	switch config.Loop.ControlFlow {
	case "poll", "wait", "wait_until":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf(
			"loop.control_flow must be one of: poll, wait, wait_until (got: %s)",
			config.Loop.ControlFlow,
		))
	}
	if config.Loop.WaitInterval < 0 {
		validationErrors = append(validationErrors, "loop.wait_interval must be non-negative")
	}
	if config.Loop.MaxBatch <= 0 {
		validationErrors = append(validationErrors, "loop.max_batch must be positive")
	}
	switch config.Loop.Driver {
	case "auto", "headless", "webkit":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf(
			"loop.driver must be one of: auto, headless, webkit (got: %s)",
			config.Loop.Driver,
		))
	}
	return validationErrors
}

func validateWebView(config *Config) []string {
	color := config.WebView.BackgroundColor
	if color == "" || validation.IsHexColor(color) {
		return nil
	}
	return []string{fmt.Sprintf("webview.background_color must be #RRGGBB or #RRGGBBAA (got: %s)", color)}
}

func validateRemote(config *Config) []string {
	var validationErrors []string
	for _, msg := range validation.ValidateListenAddress(config.Remote.Listen) {
		validationErrors = append(validationErrors, "remote."+msg)
	}
	if config.Remote.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "remote.request_timeout must be positive")
	}
	return validationErrors
}

// normalizeConfig fixes up values that have an obvious canonical form.
func normalizeConfig(config *Config) {
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	if config.Logging.Level == "warning" {
		config.Logging.Level = "warn"
	}
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))
	config.Loop.ControlFlow = strings.ToLower(strings.TrimSpace(config.Loop.ControlFlow))
	config.Loop.Driver = strings.ToLower(strings.TrimSpace(config.Loop.Driver))
	if config.Loop.Driver == "" {
		config.Loop.Driver = defaultDriver
	}
}
