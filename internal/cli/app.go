// Package cli wires configuration, logging and styling for the webloop commands.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/bnema/webloop/internal/cli/styles"
	"github.com/bnema/webloop/internal/domain/build"
	"github.com/bnema/webloop/internal/infrastructure/config"
	"github.com/bnema/webloop/internal/logging"
	"github.com/bnema/webloop/pkg/webview"
)

// App holds CLI dependencies.
type App struct {
	Config    *config.Config
	Manager   *config.Manager
	Theme     *styles.Theme
	BuildInfo build.Info
	Logger    zerolog.Logger

	// Context with logger
	ctx    context.Context
	closer io.Closer
}

// NewApp loads the configuration and builds the logger from it. A config
// that fails to load is reported and replaced by the defaults so commands
// like "config path" keep working.
func NewApp() (*App, error) {
	mgr, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("create config manager: %w", err)
	}
	loadErr := mgr.Load()
	cfg := mgr.Get()

	logger, closer, err := logging.NewWithFile(logging.ConfigFromEnv(cfg.Logging.LoggerConfig()))
	if err != nil {
		// Fall back to stderr only; the log dir may be read-only.
		logger = logging.New(logging.ConfigFromEnv(logging.DefaultConfig()))
		logger.Warn().Err(err).Msg("log file disabled")
		closer = nil
	}
	if loadErr != nil {
		logger.Warn().Err(loadErr).Msg("using default configuration")
	}

	return &App{
		Config:  cfg,
		Manager: mgr,
		Theme:   styles.NewTheme(),
		Logger:  logger,
		ctx:     logging.WithContext(context.Background(), logger),
		closer:  closer,
	}, nil
}

// Close releases all resources.
func (a *App) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Ctx returns the application context with logger.
func (a *App) Ctx() context.Context {
	return a.ctx
}

// LoopOptions translates the loop section into event loop options.
// A non-empty driver overrides the configured one.
func LoopOptions(cfg config.LoopConfig, driver string, logger zerolog.Logger) ([]webview.Option, error) {
	flow, err := webview.ParseControlFlow(cfg.ControlFlow)
	if err != nil {
		return nil, err
	}
	if driver == "" {
		driver = cfg.Driver
	}
	return []webview.Option{
		webview.WithDriverName(driver),
		webview.WithLogger(logger),
		webview.WithControlFlow(flow),
		webview.WithWaitInterval(cfg.WaitInterval),
		webview.WithKeepAlive(cfg.KeepAlive),
		webview.WithMaxBatch(cfg.MaxBatch),
	}, nil
}

// ApplyWebViewDefaults copies the webview section onto b.
func ApplyWebViewDefaults(b *webview.WebViewBuilder, cfg config.WebViewConfig) *webview.WebViewBuilder {
	if cfg.UserAgent != "" {
		b.WithUserAgent(cfg.UserAgent)
	}
	if cfg.BackgroundColor != "" {
		b.WithBackgroundColor(cfg.BackgroundColor)
	}
	return b.WithDevtools(cfg.Devtools)
}
