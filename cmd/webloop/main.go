package main

import (
	"context"
	"runtime"

	"github.com/bnema/webloop/internal/cli/cmd"
	"github.com/bnema/webloop/internal/domain/build"
	"github.com/bnema/webloop/internal/logging"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	enableCrashForensics()
	logCoreDumpLimits(logging.WithComponent(logging.WithContext(context.Background(), logging.NewFromEnv()), "main"))

	// Pass build info to CLI
	cmd.SetBuildInfo(build.Info{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
	})

	// Default: run CLI (shows help if no subcommand)
	cmd.Execute()
}
