package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageturn/internal/extract"
	"github.com/jackzampolin/pageturn/internal/ledger"
	"github.com/jackzampolin/pageturn/internal/output"
	"github.com/jackzampolin/pageturn/internal/reader/kindle"
)

var extractInput string

var extractCmd = &cobra.Command{
	Use:   "extract [asin...]",
	Short: "Capture the content pages of one or more books",
	Long: `Capture the content pages of one or more books from the web reader.

One browser session is used for the whole batch and the account signs in
once. Books are processed sequentially. Books already listed in
out/completed_asins_extract.txt are skipped; a failed book is logged and
the batch moves on.

When no ASINs are given they are read from the first column of the input
CSV (default: ~/.pageturn/input/ASIN.csv, header row skipped).

Credentials come from reader.email and reader.password in the config,
which default to ${AMAZON_EMAIL} and ${AMAZON_PASSWORD}.

Tuning in the navigation, metadata and toc sections is re-read between
books, so edits to config.yaml apply to the rest of a running batch.

Examples:
  pageturn extract B00ABC1234
  pageturn extract --input books.csv`,
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

		ids := args
		if len(ids) == 0 {
			input := extractInput
			if input == "" {
				input = h.InputPath()
			}
			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			ids, err = extract.LoadDocIDs(f)
			f.Close()
			if err != nil {
				return err
			}
		}
		if len(ids) == 0 {
			return errors.New("no ASINs to extract")
		}

		led, err := ledger.Open(h.CompletedPath())
		if err != nil {
			return err
		}

		batch := &extract.Batch{Ledger: led, Logger: logger}
		first, ok := batch.FirstPending(ids)
		if !ok {
			logger.Info("all documents already processed", "count", len(ids))
			return output.Print(extract.Summary{Skipped: ids})
		}

		tuning, err := cfg.Tuning(logger)
		if err != nil {
			return err
		}

		session, err := kindle.NewSession(ctx, cfg.KindleConfig(logger))
		if err != nil {
			return err
		}
		defer session.Close()

		email, password := cfg.Credentials()
		if err := session.Login(ctx, first, email, password); err != nil {
			return err
		}

		ext, err := extract.New(extract.Config{
			Surface:              session,
			Home:                 h,
			Navigator:            tuning.Navigator,
			Resolver:             tuning.Resolver,
			SettleDelay:          tuning.SettleDelay,
			MetadataTimeout:      tuning.MetadataTimeout,
			MetadataPollInterval: tuning.MetadataPollInterval,
			ReaderHost:           readerHost(cfg.Reader.BaseURL),
			Logger:               logger,
		})
		if err != nil {
			return err
		}

		mgr.WatchConfig()
		batch.Extractor = ext
		batch.BeforeEach = func() {
			t, err := mgr.Get().Tuning(logger)
			if err != nil {
				logger.Warn("keeping previous tuning", "error", err)
				return
			}
			ext.SetTuning(t)
		}

		summary, err := batch.Run(ctx, ids)
		if perr := output.Print(summary); perr != nil {
			logger.Warn("failed to print summary", "error", perr)
		}
		return err
	},
}

// readerHost returns the host the reader's metadata requests go to.
func readerHost(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return kindle.ReaderHost
	}
	return u.Hostname()
}

func init() {
	extractCmd.Flags().StringVar(&extractInput, "input", "", "CSV of ASINs (default: ~/.pageturn/input/ASIN.csv)")

	rootCmd.AddCommand(extractCmd)
}
