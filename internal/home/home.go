package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// DefaultDirName is the default name for the pageturn home directory.
	DefaultDirName = ".pageturn"

	// OutDirName holds one directory per extracted document.
	OutDirName = "out"

	// InputDirName holds batch input files.
	InputDirName = "input"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	PagesDirName     = "pages"
	MetadataFileName = "metadata.json"
	ContentFileName  = "content.json"
	InputFileName    = "ASIN.csv"
	CompletedFile    = "completed_asins_extract.txt"
	OllamaDirName    = "ollama"
)

// Dir represents the pageturn home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.pageturn).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// OutPath returns the directory holding per-document output.
func (d *Dir) OutPath() string {
	return filepath.Join(d.path, OutDirName)
}

// InputPath returns the default batch input CSV.
func (d *Dir) InputPath() string {
	return filepath.Join(d.path, InputDirName, InputFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CompletedPath returns the ledger of fully extracted documents.
func (d *Dir) CompletedPath() string {
	return filepath.Join(d.OutPath(), CompletedFile)
}

// OllamaPath returns the model cache mounted into the Ollama container.
func (d *Dir) OllamaPath() string {
	return filepath.Join(d.path, OllamaDirName)
}

// BookDir returns the output directory of one document.
func (d *Dir) BookDir(docID string) string {
	return filepath.Join(d.OutPath(), docID)
}

// PagesDir returns the screenshot directory of one document.
func (d *Dir) PagesDir(docID string) string {
	return filepath.Join(d.BookDir(docID), PagesDirName)
}

func (d *Dir) MetadataPath(docID string) string {
	return filepath.Join(d.BookDir(docID), MetadataFileName)
}

func (d *Dir) ContentPath(docID string) string {
	return filepath.Join(d.BookDir(docID), ContentFileName)
}

// ExportPath returns the PDF bundle path of one document.
func (d *Dir) ExportPath(docID string) string {
	return filepath.Join(d.BookDir(docID), docID+".pdf")
}

// PageImagePath returns the screenshot path for a capture.
func (d *Dir) PageImagePath(docID string, index, page, width int) string {
	return filepath.Join(d.PagesDir(docID), PageImageName(index, page, width))
}

// PadWidth is the zero-padding width for screenshot names of a book with
// total pages: the digit count of twice the total.
func PadWidth(total int) int {
	return len(strconv.Itoa(total * 2))
}

// PageImageName formats {index}-{page}.png with both numbers zero-padded to width.
func PageImageName(index, page, width int) string {
	return fmt.Sprintf("%0*d-%0*d.png", width, index, width, page)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create out directory (this also creates the parent)
	if err := os.MkdirAll(d.OutPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create out directory: %w", err)
	}
	return nil
}

// EnsureBookDirs creates the output and pages directories of one document.
func (d *Dir) EnsureBookDirs(docID string) error {
	if err := os.MkdirAll(d.PagesDir(docID), 0o755); err != nil {
		return fmt.Errorf("failed to create pages directory for %s: %w", docID, err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
