package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageturn/internal/config"
	"github.com/jackzampolin/pageturn/internal/output"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to ~/.pageturn/config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		if h.ConfigExists() && path == h.ConfigPath() && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after defaults, the config file and
PAGETURN_ environment overrides are applied. Secrets are shown as
written, with ${ENV_VAR} references unresolved.

With a key such as navigation.max_advances, only that value is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := getConfig(h, logger)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			v, err := mgr.Value(args[0])
			if err != nil {
				return err
			}
			return output.Print(map[string]any{args[0]: v})
		}
		if f := mgr.File(); f != "" {
			logger.Info("loaded config", "file", f)
		}
		return output.Print(mgr.Get())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(configCmd)
}
