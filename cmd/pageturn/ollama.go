package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageturn/internal/config"
	"github.com/jackzampolin/pageturn/internal/home"
	"github.com/jackzampolin/pageturn/internal/ollama"
)

var ollamaCmd = &cobra.Command{
	Use:   "ollama",
	Short: "Manage the local Ollama container",
	Long: `Manage the Ollama container used as the default transcription backend.

Models are cached in ~/.pageturn/ollama/ so they survive container removal.

Examples:
  pageturn ollama start          # Start the Ollama container
  pageturn ollama pull llava:13b # Download a vision model
  pageturn ollama stop           # Stop the container (models preserved)
  pageturn ollama status         # Check container status
  pageturn ollama logs           # View container logs`,
}

// withDockerManager loads home and config, runs fn with a manager, and
// closes the Docker client afterwards.
func withDockerManager(cmd *cobra.Command, fn func(*ollama.DockerManager, *config.Config) error) error {
	logger := newLogger()
	h, err := getHome()
	if err != nil {
		return err
	}
	mgr, err := getConfig(h, logger)
	if err != nil {
		return err
	}
	cfg := mgr.Get()

	dm, err := getDockerManager(h, cfg, logger)
	if err != nil {
		return err
	}
	defer dm.Close()
	return fn(dm, cfg)
}

var ollamaStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Ollama container",
	Long: `Start the Ollama container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDockerManager(cmd, func(dm *ollama.DockerManager, _ *config.Config) error {
			fmt.Println("Starting Ollama...")
			if err := dm.Start(cmd.Context()); err != nil {
				return fmt.Errorf("failed to start Ollama: %w", err)
			}
			fmt.Printf("Ollama is running at %s\n", dm.URL())
			return nil
		})
	},
}

var ollamaStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Ollama container",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDockerManager(cmd, func(dm *ollama.DockerManager, _ *config.Config) error {
			fmt.Println("Stopping Ollama...")
			if err := dm.Stop(cmd.Context()); err != nil {
				return fmt.Errorf("failed to stop Ollama: %w", err)
			}
			fmt.Println("Ollama stopped")
			return nil
		})
	},
}

var ollamaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Ollama container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDockerManager(cmd, func(dm *ollama.DockerManager, _ *config.Config) error {
			ctx := cmd.Context()
			status, err := dm.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			switch status {
			case ollama.StatusRunning:
				fmt.Printf("Status: %s\n", status)
				fmt.Printf("URL: %s\n", dm.URL())
				if err := dm.WaitReady(ctx, 2*time.Second); err != nil {
					fmt.Printf("Health: unhealthy (%v)\n", err)
				} else {
					fmt.Println("Health: healthy")
				}
			case ollama.StatusStopped:
				fmt.Printf("Status: %s (use 'pageturn ollama start' to start)\n", status)
			case ollama.StatusNotFound:
				fmt.Printf("Status: %s (use 'pageturn ollama start' to create)\n", status)
			default:
				fmt.Printf("Status: %s\n", status)
			}
			return nil
		})
	},
}

var logsTail string

var ollamaLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show Ollama container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDockerManager(cmd, func(dm *ollama.DockerManager, _ *config.Config) error {
			logs, err := dm.Logs(cmd.Context(), logsTail)
			if err != nil {
				return fmt.Errorf("failed to get logs: %w", err)
			}
			fmt.Print(logs)
			return nil
		})
	},
}

var ollamaRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Ollama container",
	Long: `Remove the Ollama container.

This stops and removes the container. Models in ~/.pageturn/ollama/
are NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDockerManager(cmd, func(dm *ollama.DockerManager, _ *config.Config) error {
			fmt.Println("Removing Ollama container...")
			if err := dm.Remove(cmd.Context()); err != nil {
				return fmt.Errorf("failed to remove container: %w", err)
			}
			fmt.Println("Ollama container removed (models preserved)")
			return nil
		})
	},
}

var ollamaWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for Ollama to be ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDockerManager(cmd, func(dm *ollama.DockerManager, _ *config.Config) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			fmt.Printf("Waiting for Ollama (timeout: %s)...\n", timeout)
			if err := dm.WaitReady(cmd.Context(), timeout); err != nil {
				return fmt.Errorf("Ollama not ready: %w", err)
			}
			fmt.Println("Ollama is ready")
			return nil
		})
	},
}

var ollamaPullCmd = &cobra.Command{
	Use:   "pull [model]",
	Short: "Pull a model into the Ollama cache",
	Long: `Pull a model into the running Ollama container.

Defaults to transcription.model from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDockerManager(cmd, func(dm *ollama.DockerManager, cfg *config.Config) error {
			model := cfg.Transcription.Model
			if len(args) == 1 {
				model = args[0]
			}
			fmt.Printf("Pulling %s...\n", model)
			if err := dm.Pull(cmd.Context(), model); err != nil {
				return err
			}
			fmt.Printf("%s is ready\n", model)
			return nil
		})
	},
}

func init() {
	ollamaCmd.AddCommand(ollamaStartCmd)
	ollamaCmd.AddCommand(ollamaStopCmd)
	ollamaCmd.AddCommand(ollamaStatusCmd)
	ollamaCmd.AddCommand(ollamaLogsCmd)
	ollamaCmd.AddCommand(ollamaRemoveCmd)
	ollamaCmd.AddCommand(ollamaWaitCmd)
	ollamaCmd.AddCommand(ollamaPullCmd)

	ollamaLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "Number of lines to show from the end")
	ollamaWaitCmd.Flags().Duration("timeout", 60*time.Second, "Timeout waiting for Ollama")

	rootCmd.AddCommand(ollamaCmd)
}

// getDockerManager creates a DockerManager with the configured container
// settings and the model cache under the home directory.
func getDockerManager(h *home.Dir, cfg *config.Config, logger *slog.Logger) (*ollama.DockerManager, error) {
	modelPath := h.OllamaPath()
	if err := os.MkdirAll(modelPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	return ollama.NewDockerManager(cfg.DockerConfig(h.Path(), modelPath, logger))
}
