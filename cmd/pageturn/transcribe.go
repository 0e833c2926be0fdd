package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageturn/internal/output"
	"github.com/jackzampolin/pageturn/internal/providers"
	"github.com/jackzampolin/pageturn/internal/transcribe"
)

var startOllama bool

// transcribeResult is the per-book summary printed after a run.
type transcribeResult struct {
	ASIN        string `json:"asin" yaml:"asin"`
	Transcripts int    `json:"transcripts" yaml:"transcripts"`
	Content     string `json:"content,omitempty" yaml:"content,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <asin>...",
	Short: "Transcribe captured pages to text with a vision model",
	Long: `Transcribe the captured pages of one or more books.

Pages already present in content.json are skipped, so an interrupted run
resumes where it stopped. Refusals are retried with a higher temperature
and, after a few attempts, a more insistent prompt.

The endpoint is any OpenAI-compatible vision API (transcription.base_url).
The default is a local Ollama server; --start-ollama starts the managed
container and pulls the configured model first.

Examples:
  pageturn transcribe B00ABC1234
  pageturn transcribe --start-ollama B00ABC1234 B00XYZ9876`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
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
		visionCfg := cfg.VisionConfig()

		if startOllama {
			dm, err := getDockerManager(h, cfg, logger)
			if err != nil {
				return err
			}
			defer dm.Close()

			if err := dm.Start(ctx); err != nil {
				return fmt.Errorf("failed to start ollama: %w", err)
			}
			if err := dm.Pull(ctx, visionCfg.Model); err != nil {
				return err
			}
			visionCfg.BaseURL = dm.OpenAIURL()
		}

		client := providers.NewVisionClient(visionCfg)
		if err := client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("vision endpoint unavailable: %w", err)
		}

		pcfg := cfg.TranscribeConfig(logger)
		pcfg.Transcriber = client
		pcfg.Home = h
		pipeline, err := transcribe.New(pcfg)
		if err != nil {
			return err
		}

		var results []transcribeResult
		for _, id := range args {
			transcripts, err := pipeline.Run(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("transcription failed", "asin", id, "error", err)
				results = append(results, transcribeResult{ASIN: id, Error: err.Error()})
				continue
			}
			results = append(results, transcribeResult{
				ASIN:        id,
				Transcripts: len(transcripts),
				Content:     h.ContentPath(id),
			})
		}
		return output.Print(results)
	},
}

func init() {
	transcribeCmd.Flags().BoolVar(&startOllama, "start-ollama", false, "start the managed Ollama container and pull the model first")

	rootCmd.AddCommand(transcribeCmd)
}
