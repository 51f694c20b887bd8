package config

import "time"

const (
	defaultLogMaxSizeMB    = 10
	defaultLogMaxBackups   = 3
	defaultLogMaxAgeDays   = 7
	defaultWaitInterval    = 10 * time.Millisecond
	defaultMaxBatch        = 64
	defaultListen          = "127.0.0.1:7455"
	defaultRequestTimeout  = 30 * time.Second
	defaultControlFlow     = "wait"
	defaultDriver          = "auto"
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultBackgroundColor = ""
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
		Loop: LoopConfig{
			ControlFlow:  defaultControlFlow,
			WaitInterval: defaultWaitInterval,
			MaxBatch:     defaultMaxBatch,
			Driver:       defaultDriver,
		},
		WebView: WebViewConfig{
			Devtools:        true,
			BackgroundColor: defaultBackgroundColor,
		},
		Remote: RemoteConfig{
			Listen:         defaultListen,
			RequestTimeout: defaultRequestTimeout,
		},
	}
}
