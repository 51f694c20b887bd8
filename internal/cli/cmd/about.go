package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/webloop/internal/cli/styles"
	"github.com/bnema/webloop/internal/infrastructure/drivers"
)

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Show version and build information",
	Long:  `Display version, build info, available drivers, repository URL, and contributors.`,
	RunE:  runAbout,
}

func init() {
	rootCmd.AddCommand(aboutCmd)
}

func runAbout(_ *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	renderer := styles.NewAboutRenderer(app.Theme)
	fmt.Println(renderer.Render(app.BuildInfo, drivers.Names()))
	return nil
}
