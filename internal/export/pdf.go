// Package export bundles captured page screenshots into a PDF.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/jackzampolin/pageturn/internal/home"
	"github.com/jackzampolin/pageturn/internal/manifest"
)

// ErrNoImages is returned when there is nothing to export.
var ErrNoImages = errors.New("no page images to export")

// PDF writes one page per image, in the given order, to out. An existing
// file at out is replaced.
func PDF(images []string, out string) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	for _, img := range images {
		if _, err := os.Stat(img); err != nil {
			return fmt.Errorf("missing page image: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	// ImportImagesFile appends to an existing PDF.
	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", out, err)
	}

	if err := api.ImportImagesFile(images, out, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to build PDF: %w", err)
	}
	return nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", path, err)
	}
	return n, nil
}

// BookImages lists a document's screenshots in capture order, from
// metadata.json when present, otherwise from the pages directory.
func BookImages(dir *home.Dir, docID string) ([]string, error) {
	metaPath := dir.MetadataPath(docID)
	if _, err := os.Stat(metaPath); err == nil {
		book, err := manifest.Load(metaPath)
		if err != nil {
			return nil, err
		}
		pages := append([]manifest.Page(nil), book.Pages...)
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
		images := make([]string, len(pages))
		for i, p := range pages {
			images[i] = p.Screenshot
		}
		return images, nil
	}

	images, err := filepath.Glob(filepath.Join(dir.PagesDir(docID), "*.png"))
	if err != nil {
		return nil, err
	}
	// Zero-padded names sort in capture order.
	sort.Strings(images)
	return images, nil
}

// Book exports a document's screenshots to its default export path and
// returns that path.
func Book(dir *home.Dir, docID string) (string, error) {
	images, err := BookImages(dir, docID)
	if err != nil {
		return "", err
	}
	out := dir.ExportPath(docID)
	if err := PDF(images, out); err != nil {
		return "", err
	}
	return out, nil
}
