package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileDocument is the on-disk shape of Config. Durations are written as
// strings ("10ms") so the file stays editable by hand.
type fileDocument struct {
	Logging LoggingConfig `toml:"logging" comment:"Log output. level: trace, debug, info, warn, error, off"`
	Loop    struct {
		ControlFlow  string `toml:"control_flow" comment:"poll, wait or wait_until"`
		WaitInterval string `toml:"wait_interval"`
		KeepAlive    bool   `toml:"keep_alive"`
		MaxBatch     int    `toml:"max_batch"`
		Driver       string `toml:"driver" comment:"auto, headless or webkit"`
	} `toml:"loop"`
	WebView WebViewConfig `toml:"webview"`
	Remote  struct {
		Listen         string `toml:"listen"`
		Token          string `toml:"token"`
		RequestTimeout string `toml:"request_timeout"`
	} `toml:"remote"`
}

func newFileDocument(cfg *Config) fileDocument {
	var doc fileDocument
	doc.Logging = cfg.Logging
	doc.Loop.ControlFlow = cfg.Loop.ControlFlow
	doc.Loop.WaitInterval = formatDuration(cfg.Loop.WaitInterval)
	doc.Loop.KeepAlive = cfg.Loop.KeepAlive
	doc.Loop.MaxBatch = cfg.Loop.MaxBatch
	doc.Loop.Driver = cfg.Loop.Driver
	doc.WebView = cfg.WebView
	doc.Remote.Listen = cfg.Remote.Listen
	doc.Remote.Token = cfg.Remote.Token
	doc.Remote.RequestTimeout = formatDuration(cfg.Remote.RequestTimeout)
	return doc
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	return d.String()
}

// MarshalTOML encodes cfg with sections in definition order.
func MarshalTOML(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(newFileDocument(cfg)); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConfigOrdered writes the configuration to path.
func WriteConfigOrdered(cfg *Config, path string) error {
	data, err := MarshalTOML(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
