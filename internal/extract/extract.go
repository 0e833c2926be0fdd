// Package extract drives a reader surface through one document: it maps the
// table of contents, captures every content page and stores the result.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackzampolin/pageturn/internal/home"
	"github.com/jackzampolin/pageturn/internal/manifest"
	"github.com/jackzampolin/pageturn/internal/pagenav"
	"github.com/jackzampolin/pageturn/internal/reader"
	"github.com/jackzampolin/pageturn/internal/sidechannel"
	"github.com/jackzampolin/pageturn/internal/toc"
)

const (
	DefaultSettleDelay = 100 * time.Millisecond
	DefaultReaderHost  = "read.amazon.com"
)

// ErrSessionExpired means opening a document landed on the sign-in flow.
var ErrSessionExpired = errors.New("login session expired or invalid")

// Config holds extractor dependencies and tuning.
type Config struct {
	Surface   reader.Surface
	Home      *home.Dir
	Navigator reader.NavigatorConfig
	// Resolver defaults to toc.DefaultResolver() when it has no patterns.
	Resolver toc.Resolver
	// SettleDelay is the pause after each capture before turning the page.
	SettleDelay          time.Duration
	MetadataTimeout      time.Duration
	MetadataPollInterval time.Duration
	ReaderHost           string
	Logger               *slog.Logger
}

// Tuning is the part of Config that may change between documents.
type Tuning struct {
	Navigator            reader.NavigatorConfig
	Resolver             toc.Resolver
	SettleDelay          time.Duration
	MetadataTimeout      time.Duration
	MetadataPollInterval time.Duration
}

// Extractor captures documents from a Surface.
type Extractor struct {
	surface reader.Surface
	home    *home.Dir
	host    string
	logger  *slog.Logger

	mu     sync.Mutex
	tuning Tuning
}

// New creates an Extractor.
func New(cfg Config) (*Extractor, error) {
	if cfg.Surface == nil {
		return nil, errors.New("surface is required")
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ReaderHost == "" {
		cfg.ReaderHost = DefaultReaderHost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		surface: cfg.Surface,
		home:    cfg.Home,
		host:    cfg.ReaderHost,
		logger:  logger,
	}
	e.SetTuning(Tuning{
		Navigator:            cfg.Navigator,
		Resolver:             cfg.Resolver,
		SettleDelay:          cfg.SettleDelay,
		MetadataTimeout:      cfg.MetadataTimeout,
		MetadataPollInterval: cfg.MetadataPollInterval,
	})
	return e, nil
}

// SetTuning replaces the tuning used by subsequent Extract calls.
func (e *Extractor) SetTuning(t Tuning) {
	if len(t.Resolver.Patterns) == 0 {
		t.Resolver.Patterns = toc.DefaultBackMatter
	}
	if t.Resolver.MinRatio <= 0 {
		t.Resolver.MinRatio = toc.DefaultMinRatio
	}
	if t.SettleDelay <= 0 {
		t.SettleDelay = DefaultSettleDelay
	}
	if t.Navigator.Logger == nil {
		t.Navigator.Logger = e.logger
	}
	e.mu.Lock()
	e.tuning = t
	e.mu.Unlock()
}

func (e *Extractor) currentTuning() Tuning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tuning
}

// Extract captures docID and writes its screenshots and metadata.json.
func (e *Extractor) Extract(ctx context.Context, docID string) (*manifest.Book, error) {
	t := e.currentTuning()
	logger := e.logger.With("asin", docID)

	if err := e.home.EnsureBookDirs(docID); err != nil {
		return nil, err
	}

	collector := sidechannel.NewCollector(docID, e.host)
	unsubscribe := e.surface.Subscribe(collector.Wants, collector.Handle)
	defer unsubscribe()

	if err := e.surface.Open(ctx, docID); err != nil {
		return nil, err
	}
	signedOut, err := e.surface.SignedOut(ctx)
	if err != nil {
		return nil, err
	}
	if signedOut {
		return nil, ErrSessionExpired
	}
	if err := e.surface.Settle(ctx); err != nil {
		return nil, err
	}

	initial, hasInitial := e.position(ctx)

	if err := e.surface.OpenTOC(ctx); err != nil {
		return nil, err
	}
	entries, err := e.harvestTOC(ctx, logger)
	if err != nil {
		return nil, err
	}

	bounds, err := t.Resolver.Resolve(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", docID, err)
	}
	contentPages, err := bounds.ContentPages()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", docID, err)
	}
	attrs := []any{"first", bounds.First.Title, "content_pages", contentPages, "total", bounds.First.Total}
	if bounds.AfterLast != nil {
		attrs = append(attrs, "after_last", bounds.AfterLast.Title, "match", bounds.Match)
	}
	logger.Info("content bounds resolved", attrs...)

	if _, err := e.surface.ActivateTOCEntry(ctx, bounds.First.Ordinal); err != nil {
		return nil, fmt.Errorf("failed to jump to %q: %w", bounds.First.Title, err)
	}
	if err := e.surface.CloseTOC(ctx); err != nil {
		return nil, err
	}

	pages, err := e.capture(ctx, logger, t, docID, contentPages, home.PadWidth(bounds.First.Total))
	if err != nil {
		return nil, err
	}

	info, meta, err := collector.Wait(ctx, t.MetadataTimeout, t.MetadataPollInterval)
	if err != nil {
		return nil, err
	}

	book := &manifest.Book{Info: info, Meta: meta, TOC: entries, Pages: pages}
	if err := manifest.Save(e.home.MetadataPath(docID), book); err != nil {
		return nil, err
	}
	logger.Info("extraction complete", "pages", len(pages), "metadata", e.home.MetadataPath(docID))

	if hasInitial && initial.HasPage() {
		if err := e.surface.GoToPage(ctx, initial.Page); err != nil {
			logger.Warn("unable to restore reading position", "page", initial.Page, "error", err)
		}
	}
	return book, nil
}

// position reads and parses the footer. Read failures count as absent.
func (e *Extractor) position(ctx context.Context) (pagenav.Position, bool) {
	text, err := e.surface.FooterText(ctx)
	if err != nil {
		return pagenav.Position{}, false
	}
	return pagenav.Parse(text)
}

func (e *Extractor) harvestTOC(ctx context.Context, logger *slog.Logger) ([]toc.Entry, error) {
	n, err := e.surface.TOCLen(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("reading table of contents", "items", n)

	var entries []toc.Entry
	for i := 0; i < n; i++ {
		title, err := e.surface.ActivateTOCEntry(ctx, i)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("skipping unreachable TOC item", "ordinal", i, "error", err)
			continue
		}
		pos, ok := e.position(ctx)
		if !ok {
			logger.Warn("skipping TOC item without position", "ordinal", i, "title", title)
			continue
		}

		entry := toc.Entry{Title: title, Position: pos, Ordinal: i}
		entries = append(entries, entry)
		logger.Info("toc item discovered", "ordinal", i, "title", title, "position", pos.String())

		if pos.HasPage() && pos.Page >= pos.Total {
			break
		}
	}
	return entries, nil
}

func (e *Extractor) capture(ctx context.Context, logger *slog.Logger, t Tuning, docID string, contentPages, width int) ([]manifest.Page, error) {
	nav := reader.NewNavigator(e.surface, t.Navigator)
	logger.Info("reading pages", "content_pages", contentPages)

	var pages []manifest.Page
	for {
		pos, ok := e.position(ctx)
		if !ok || !pos.HasPage() || pos.Page > contentPages {
			break
		}

		img, err := e.surface.Capture(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to capture page %d: %w", pos.Page, err)
		}
		index := len(pages)
		path := e.home.PageImagePath(docID, index, pos.Page, width)
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		pages = append(pages, manifest.Page{Index: index, Page: pos.Page, Total: pos.Total, Screenshot: path})
		logger.Info("page captured", "index", index, "page", pos.Page, "total", pos.Total)

		if err := sleep(ctx, t.SettleDelay); err != nil {
			return nil, err
		}
		more, err := nav.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return pages, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
