// Package ledger records which documents a batch has fully processed.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Ledger is an append-only file with one identifier per line.
type Ledger struct {
	path string

	mu   sync.Mutex
	done map[string]struct{}
}

// Open reads the ledger at path. A missing file is an empty ledger.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path, done: make(map[string]struct{})}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			l.done[id] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return l, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Contains reports whether id has been recorded.
func (l *Ledger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[id]
	return ok
}

// Len returns the number of recorded identifiers.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}

// Append records id and syncs the file. Recording an id twice is a no-op.
func (l *Ledger) Append(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("empty ledger id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.done[id]; ok {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	l.done[id] = struct{}{}
	return nil
}
