package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageturn/internal/export"
	"github.com/jackzampolin/pageturn/internal/home"
	"github.com/jackzampolin/pageturn/internal/ledger"
	"github.com/jackzampolin/pageturn/internal/manifest"
	"github.com/jackzampolin/pageturn/internal/output"
)

// bookStatus summarizes what exists on disk for one book.
type bookStatus struct {
	ASIN        string   `json:"asin" yaml:"asin"`
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors     []any    `json:"authors,omitempty" yaml:"authors,omitempty"`
	Extracted   bool     `json:"extracted" yaml:"extracted"`
	Captured    int      `json:"captured" yaml:"captured"`
	Transcribed int      `json:"transcribed" yaml:"transcribed"`
	Missing     []int    `json:"missing,omitempty" yaml:"missing,omitempty"`
	Files       []string `json:"files,omitempty" yaml:"files,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status <asin>",
	Short: "Show captured and transcribed pages for a book",
	Long: `Show what exists on disk for a book: whether extraction completed,
how many pages were captured and how many have been transcribed.
Capture indexes without a transcript are listed as missing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		st, err := loadStatus(h, args[0])
		if err != nil {
			return err
		}
		return output.Print(st)
	},
}

func loadStatus(h *home.Dir, id string) (*bookStatus, error) {
	st := &bookStatus{ASIN: id}

	led, err := ledger.Open(h.CompletedPath())
	if err != nil {
		return nil, err
	}
	st.Extracted = led.Contains(id)

	if book, err := manifest.Load(h.MetadataPath(id)); err == nil {
		if title, ok := book.Meta["title"].(string); ok {
			st.Title = title
		}
		if authors, ok := book.Meta["authorsList"].([]any); ok {
			st.Authors = authors
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	images, err := export.BookImages(h, id)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no captured pages for %s", id)
	}
	st.Captured = len(images)

	transcripts, err := manifest.LoadTranscripts(h.ContentPath(id))
	if err != nil {
		return nil, err
	}
	st.Transcribed = len(transcripts)
	done := make(map[int]bool, len(transcripts))
	for _, t := range transcripts {
		done[t.Index] = true
	}
	for i := range images {
		if !done[i] {
			st.Missing = append(st.Missing, i)
		}
	}

	for _, p := range []string{h.MetadataPath(id), h.ContentPath(id), h.ExportPath(id)} {
		if _, err := os.Stat(p); err == nil {
			st.Files = append(st.Files, p)
		}
	}
	return st, nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
