package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageturn/internal/config"
	"github.com/jackzampolin/pageturn/internal/home"
	"github.com/jackzampolin/pageturn/internal/output"
	"github.com/jackzampolin/pageturn/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "pageturn",
	Short: "Capture web-reader books page by page and transcribe them with a vision model",
	Long: `pageturn drives a browser through a web-based e-book reader, captures
every content page as an image, and transcribes the images to text.

The pipeline includes:
  - Table of contents harvesting and back-matter detection
  - Page capture with retry on unreliable page turns
  - Side-channel metadata collection from the reader's own requests
  - Vision-model transcription with refusal handling`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pageturn/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pageturn home directory (default: ~/.pageturn)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		f, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		output.SetFormat(f)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger. Logs go to stderr so structured
// output on stdout stays parseable.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getConfig loads configuration, looking in the home directory when no
// --config flag was given.
func getConfig(h *home.Dir, logger *slog.Logger) (*config.Manager, error) {
	mgr, err := config.NewManager(cfgFile, h.Path(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}
