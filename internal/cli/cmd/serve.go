package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/webloop/internal/cli"
	"github.com/bnema/webloop/internal/infrastructure/config"
	"github.com/bnema/webloop/internal/logging"
	"github.com/bnema/webloop/internal/remote"
	"github.com/bnema/webloop/pkg/webview"
)

var serveOpts struct {
	listen string
	token  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host an event loop driven over a websocket",
	Long: `Serve runs an event loop in this process and accepts remote requests on a
websocket: create windows and webviews, evaluate scripts, load pages and
exchange IPC messages. Page messages and loop events are pushed to every
connected client.

The loop keeps running with no window open and stops on an exit request or
when the process is interrupted. Edits to the config file change the log
level without a restart.

Examples:
  webloop serve
  webloop serve --listen 127.0.0.1:9000 --token s3cret
  WEBLOOP_REMOTE_TOKEN=s3cret webloop serve --driver headless`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveOpts.listen, "listen", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveOpts.token, "token", "", "bearer token required from clients (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	cfg := app.Config

	listen := cfg.Remote.Listen
	if serveOpts.listen != "" {
		listen = serveOpts.listen
	}
	token := cfg.Remote.Token
	if serveOpts.token != "" {
		token = serveOpts.token
	}

	// The logger lets everything through; the global level follows the config.
	logger := app.Logger.Level(zerolog.TraceLevel)
	zerolog.SetGlobalLevel(logging.ParseLevel(cfg.Logging.Level))
	app.Manager.OnConfigChange(func(next *config.Config) {
		zerolog.SetGlobalLevel(logging.ParseLevel(next.Logging.Level))
		logger.Info().Str("level", next.Logging.Level).Msg("config reloaded")
	})
	if err := app.Manager.Watch(); err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopOpts, err := cli.LoopOptions(cfg.Loop, driverFlag, logger)
	if err != nil {
		return err
	}
	loop, err := webview.NewEventLoop(append(loopOpts, webview.WithKeepAlive(true))...)
	if err != nil {
		return err
	}

	server := remote.NewServer(loop,
		remote.WithToken(token),
		remote.WithRequestTimeout(cfg.Remote.RequestTimeout),
		remote.WithServerLogger(logger),
		remote.WithWebViewDefaults(remote.WebViewDefaults{
			UserAgent:       cfg.WebView.UserAgent,
			Devtools:        cfg.WebView.Devtools,
			BackgroundColor: cfg.WebView.BackgroundColor,
		}),
	)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", listen)
	if err != nil {
		loop.Exit()
		return fmt.Errorf("listen on %s: %w", listen, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return server.Serve(gctx, ln)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		return err
	}
	if code := loop.ExitCode(); code != 0 {
		return &loopExitError{code: code}
	}
	return nil
}
