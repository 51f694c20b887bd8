// Package cmd provides Cobra CLI commands for webloop.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/webloop/internal/cli"
	"github.com/bnema/webloop/internal/domain/build"
)

var (
	app        *cli.App
	buildInfo  build.Info
	driverFlag string
	rootCmd    = &cobra.Command{
		Use:   "webloop",
		Short: "Native windows and webviews driven by an explicit event loop",
		Long: `webloop hosts native windows and webviews on an event loop you own.

Pages talk to the host through window.ipc.postMessage, the host answers
through the page's __webloop_receive hook.

Drivers:
  - webkit    GTK4 + WebKitGTK 6.0 (built with -tags webkit_cgo)
  - headless  in-process DOM and JavaScript runtime, no display needed
  - auto      webkit when available, headless otherwise

Use 'webloop open' to show a page, 'webloop serve' to host a loop driven
over a websocket, and 'webloop console' to drive it interactively.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip initialization for commands that don't need app context
			switch cmd.Name() {
			case "help", "completion", "gen-docs":
				return nil
			}

			var err error
			app, err = cli.NewApp()
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			app.BuildInfo = buildInfo
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if app != nil {
				_ = app.Close()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "native driver: auto, headless or webkit (default from config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// GetApp returns the initialized app (for use by subcommands).
func GetApp() *cli.App {
	return app
}

// SetBuildInfo sets the build information (called from main.go before Execute).
func SetBuildInfo(info build.Info) {
	buildInfo = info
}

// loopExitError carries a non-zero event loop exit code to the process.
type loopExitError struct {
	code int
}

func (e *loopExitError) Error() string {
	return fmt.Sprintf("event loop exited with code %d", e.code)
}

func exitCode(err error) int {
	if e, ok := err.(*loopExitError); ok {
		return e.code
	}
	return 1
}
