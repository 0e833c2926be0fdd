package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackzampolin/pageturn/internal/ledger"
	"github.com/jackzampolin/pageturn/internal/manifest"
)

// DocumentExtractor extracts one document.
type DocumentExtractor interface {
	Extract(ctx context.Context, docID string) (*manifest.Book, error)
}

// Batch extracts documents sequentially, skipping those already in the ledger.
type Batch struct {
	Extractor DocumentExtractor
	Ledger    *ledger.Ledger
	Logger    *slog.Logger
	// BeforeEach runs before every document that is not skipped.
	BeforeEach func()
}

// Summary reports the outcome of a batch.
type Summary struct {
	Processed []string `json:"processed"`
	Skipped   []string `json:"skipped"`
	Failed    []string `json:"failed"`
}

// Run processes docIDs in order. Per-document failures are logged and the
// batch continues; only context cancellation stops it early.
func (b *Batch) Run(ctx context.Context, docIDs []string) (Summary, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var s Summary
	for _, id := range docIDs {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if b.Ledger != nil && b.Ledger.Contains(id) {
			logger.Info("skipping completed document", "asin", id)
			s.Skipped = append(s.Skipped, id)
			continue
		}
		if b.BeforeEach != nil {
			b.BeforeEach()
		}

		logger.Info("extracting document", "asin", id)
		if _, err := b.Extractor.Extract(ctx, id); err != nil {
			if ctx.Err() != nil {
				return s, ctx.Err()
			}
			logger.Error("extraction failed", "asin", id, "error", err)
			s.Failed = append(s.Failed, id)
			continue
		}
		if b.Ledger != nil {
			if err := b.Ledger.Append(id); err != nil {
				logger.Error("failed to record completed document", "asin", id, "error", err)
			}
		}
		s.Processed = append(s.Processed, id)
	}

	logger.Info("batch complete",
		"processed", len(s.Processed),
		"skipped", len(s.Skipped),
		"failed", len(s.Failed),
	)
	return s, nil
}

// FirstPending returns the first of docIDs not yet in the ledger. ok is false
// when every document is complete.
func (b *Batch) FirstPending(docIDs []string) (id string, ok bool) {
	for _, id := range docIDs {
		if b.Ledger == nil || !b.Ledger.Contains(id) {
			return id, true
		}
	}
	return "", false
}

// LoadDocIDs reads identifiers from the first column of a CSV with a header
// row. Blank rows are dropped and duplicates keep their first position.
func LoadDocIDs(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var ids []string
	seen := make(map[string]struct{})
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
