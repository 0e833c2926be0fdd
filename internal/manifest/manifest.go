// Package manifest reads and writes the per-document artifacts that connect
// extraction to transcription.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/pageturn/internal/toc"
)

//go:embed schema.json
var bookSchemaJSON []byte

var bookSchema = mustCompile(bookSchemaJSON)

func mustCompile(raw []byte) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("metadata.schema.json", bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("failed to load metadata schema: %v", err))
	}
	schema, err := compiler.Compile("metadata.schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile metadata schema: %v", err))
	}
	return schema
}

// Book is the extraction result persisted as metadata.json.
type Book struct {
	Info  map[string]any `json:"info"`
	Meta  map[string]any `json:"meta"`
	TOC   []toc.Entry    `json:"toc"`
	Pages []Page         `json:"pages"`
}

// Page is one captured snapshot.
type Page struct {
	Index      int    `json:"index"`
	Page       int    `json:"page"`
	Total      int    `json:"total"`
	Screenshot string `json:"screenshot"`
}

// Transcript is the text of one snapshot, persisted in content.json.
type Transcript struct {
	Index      int    `json:"index"`
	Page       int    `json:"page"`
	Text       string `json:"text"`
	Screenshot string `json:"screenshot"`
}

// Save writes the book atomically.
func Save(path string, b *Book) error {
	if b == nil {
		return errors.New("nil book")
	}
	out := *b
	if out.Info == nil {
		out.Info = map[string]any{}
	}
	if out.Meta == nil {
		out.Meta = map[string]any{}
	}
	if out.TOC == nil {
		out.TOC = []toc.Entry{}
	}
	if out.Pages == nil {
		out.Pages = []Page{}
	}
	return writeJSON(path, out)
}

// Load reads and validates metadata.json.
func Load(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	var b Book
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &b, nil
}

// Validate checks raw metadata.json content against the book schema.
func Validate(data []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := bookSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// SaveTranscripts writes transcripts sorted by index, atomically.
func SaveTranscripts(path string, ts []Transcript) error {
	sorted := append([]Transcript{}, ts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	return writeJSON(path, sorted)
}

// LoadTranscripts reads content.json. A missing file yields no transcripts.
func LoadTranscripts(path string) ([]Transcript, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var ts []Transcript
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return ts, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
