package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/webloop/internal/cli/styles"
	"github.com/bnema/webloop/internal/infrastructure/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Show, create and describe the webloop configuration file.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE:  runConfigPath,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration as loaded from the file, the defaults and the
WEBLOOP_* environment variables.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Write a config file holding every default. An existing file is kept unless --force is set.`,
	RunE:  runConfigInit,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Write the JSON schema of the config file",
	Long: `Write config.schema.json next to the config file. Editors with TOML
schema support use it for completion and validation.`,
	RunE: runConfigSchema,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd, configSchemaCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing config file")
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	path := app.Manager.ConfigFile()
	_, err := os.Stat(path)
	fmt.Println(styles.NewConfigRenderer(app.Theme).RenderPath(path, err == nil))
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	doc, err := config.MarshalTOML(app.Config)
	if err != nil {
		return err
	}
	fmt.Println(styles.NewConfigRenderer(app.Theme).RenderDocument(app.Manager.ConfigFile(), string(doc)))
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	renderer := styles.NewConfigRenderer(app.Theme)

	path := app.Manager.ConfigFile()
	if _, err := os.Stat(path); err == nil && !configForce {
		fmt.Println(renderer.RenderPath(path, true))
		fmt.Println(app.Theme.Subtle.Render("already exists, use --force to overwrite"))
		return nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := app.Manager.Save(config.DefaultConfig()); err != nil {
		fmt.Println(renderer.RenderError(err))
		return err
	}
	fmt.Println(renderer.RenderWritten("config", path))
	return nil
}

func runConfigSchema(_ *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	path, err := app.Manager.GenerateSchemaFile()
	if err != nil {
		return err
	}
	fmt.Println(styles.NewConfigRenderer(app.Theme).RenderWritten("schema", path))
	return nil
}
