// Package config loads, validates and watches the webloop configuration file.
package config

import "time"

// Config represents the complete webloop configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" toml:"logging" json:"logging" jsonschema:"description=Log output settings"`
	Loop    LoopConfig    `mapstructure:"loop" toml:"loop" json:"loop" jsonschema:"description=Event loop scheduling"`
	WebView WebViewConfig `mapstructure:"webview" toml:"webview" json:"webview" jsonschema:"description=Defaults applied to new webviews"`
	Remote  RemoteConfig  `mapstructure:"remote" toml:"remote" json:"remote" jsonschema:"description=Remote control server"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" toml:"level" json:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error,enum=off,default=info"`
	Format string `mapstructure:"format" toml:"format" json:"format" jsonschema:"enum=console,enum=json,default=console"`
	// File enables the rotated log file under the state directory.
	File       bool `mapstructure:"file" toml:"file" json:"file" jsonschema:"default=false"`
	MaxSizeMB  int  `mapstructure:"max_size_mb" toml:"max_size_mb" json:"max_size_mb" jsonschema:"minimum=1,default=10"`
	MaxBackups int  `mapstructure:"max_backups" toml:"max_backups" json:"max_backups" jsonschema:"minimum=0,default=3"`
	MaxAgeDays int  `mapstructure:"max_age_days" toml:"max_age_days" json:"max_age_days" jsonschema:"minimum=0,default=7"`
	Compress   bool `mapstructure:"compress" toml:"compress" json:"compress" jsonschema:"default=true"`
}

// LoopConfig holds event loop settings.
type LoopConfig struct {
	// ControlFlow is poll, wait or wait_until.
	ControlFlow  string        `mapstructure:"control_flow" toml:"control_flow" json:"control_flow" jsonschema:"enum=poll,enum=wait,enum=wait_until,default=wait"`
	WaitInterval time.Duration `mapstructure:"wait_interval" toml:"wait_interval" json:"wait_interval" jsonschema:"type=string,default=10ms"`
	// KeepAlive keeps the loop running after the last window closes.
	KeepAlive bool   `mapstructure:"keep_alive" toml:"keep_alive" json:"keep_alive" jsonschema:"default=false"`
	MaxBatch  int    `mapstructure:"max_batch" toml:"max_batch" json:"max_batch" jsonschema:"minimum=1,default=64"`
	Driver    string `mapstructure:"driver" toml:"driver" json:"driver" jsonschema:"enum=auto,enum=headless,enum=webkit,default=auto"`
}

// WebViewConfig holds defaults for webviews created from the CLI and the
// remote server.
type WebViewConfig struct {
	UserAgent       string `mapstructure:"user_agent" toml:"user_agent" json:"user_agent"`
	Devtools        bool   `mapstructure:"devtools" toml:"devtools" json:"devtools" jsonschema:"default=true"`
	BackgroundColor string `mapstructure:"background_color" toml:"background_color" json:"background_color" jsonschema:"pattern=^(#[0-9a-fA-F]{6}([0-9a-fA-F]{2})?)?$"`
}

// RemoteConfig holds remote control server settings.
type RemoteConfig struct {
	Listen string `mapstructure:"listen" toml:"listen" json:"listen" jsonschema:"default=127.0.0.1:7455"`
	// Token, when set, is required as a bearer token on every connection.
	Token          string        `mapstructure:"token" toml:"token" json:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" toml:"request_timeout" json:"request_timeout" jsonschema:"type=string,default=30s"`
}
