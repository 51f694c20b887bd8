package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/webloop/internal/cli/styles"
	"github.com/bnema/webloop/internal/infrastructure/deps"
	"github.com/bnema/webloop/internal/infrastructure/drivers"
)

var (
	doctorPrefix      string
	doctorOnlyRuntime bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check native drivers and runtime libraries",
	Long: `Doctor checks which native drivers can start on this host and whether
the libraries the webkit driver links against are installed.

Runtime checks query pkg-config for gtk4, webkitgtk-6.0 and
javascriptcoregtk-6.0. Use --prefix for a manual install location.

Examples:
  webloop doctor
  webloop doctor --runtime
  webloop doctor --prefix /opt/webkitgtk`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorPrefix, "prefix", "", "extra install prefix searched by pkg-config")
	doctorCmd.Flags().BoolVar(&doctorOnlyRuntime, "runtime", false, "only run runtime library checks")
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	report := styles.DoctorReport{OverallOK: true}

	if !doctorOnlyRuntime {
		report.Drivers = probeDrivers(app.Config.Loop.Driver)
		for _, d := range report.Drivers {
			if d.Default && !d.Available {
				report.OverallOK = false
			}
		}
	}

	prober := deps.NewProber(doctorPrefix)
	statuses := prober.ProbeAll(cmd.Context(), deps.WebKitPackages)
	report.Runtime = styles.DoctorRuntimeReport{
		Prefix: doctorPrefix,
		Checks: make([]styles.DoctorRuntimeCheck, 0, len(statuses)),
	}
	for _, s := range statuses {
		check := styles.DoctorRuntimeCheck{Name: s.Package, Installed: s.Err == nil, Version: s.Version}
		if s.Err != nil {
			check.Error = s.Err.Error()
			if errors.Is(s.Err, deps.ErrPkgConfigMissing) {
				check.Error = "pkg-config not found in PATH"
			}
			// Only fatal when webkit is what the user asked for.
			if app.Config.Loop.Driver == "webkit" || driverFlag == "webkit" {
				report.OverallOK = false
			}
		}
		report.Runtime.Checks = append(report.Runtime.Checks, check)
	}

	fmt.Println(styles.NewDoctorRenderer(app.Theme).Render(report))
	return nil
}

// probeDrivers starts every registered driver once. The configured driver
// is marked as the default; "auto" marks the driver it resolves to.
func probeDrivers(configured string) []styles.DoctorDriver {
	if driverFlag != "" {
		configured = driverFlag
	}
	logger := GetApp().Logger

	defaultName := configured
	if configured == "" || configured == drivers.Auto {
		defaultName = ""
		if d, err := drivers.Resolve(drivers.Auto, logger); err == nil {
			defaultName = d.Name()
		}
	}

	var out []styles.DoctorDriver
	for _, name := range drivers.Names() {
		if name == drivers.Auto {
			continue
		}
		entry := styles.DoctorDriver{Name: name, Default: name == defaultName}
		if _, err := drivers.Resolve(name, logger); err != nil {
			entry.Error = err.Error()
		} else {
			entry.Available = true
		}
		out = append(out, entry)
	}
	return out
}
