// Package toc decides which table-of-contents entries bound the main readable
// content of a book, skipping front matter (cover, title page, the TOC itself)
// and back matter (acknowledgements, author bio, previews).
package toc

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/jackzampolin/pageturn/internal/pagenav"
)

// DefaultMinRatio is the earliest point (page/total) at which back matter is
// recognized.
const DefaultMinRatio = 0.9

var (
	// ErrNoContentEntry means no TOC entry carries an arabic page number.
	ErrNoContentEntry = errors.New("unable to find first valid page in TOC")

	// ErrNoContentPages means the resolved content range is empty.
	ErrNoContentPages = errors.New("no content pages found")
)

// Entry is one row of the table of contents with the position the reader
// showed after activating it.
type Entry struct {
	Title string `json:"title"`
	pagenav.Position
	Ordinal int `json:"ordinal"`
}

// Bounds is the resolved content range.
type Bounds struct {
	First     Entry
	AfterLast *Entry
	// Match is the meaning of the back-matter pattern AfterLast matched.
	Match string
}

// Resolver locates content bounds using an ordered back-matter pattern table.
type Resolver struct {
	Patterns []Pattern
	MinRatio float64
}

// DefaultResolver returns a Resolver using DefaultBackMatter and DefaultMinRatio.
func DefaultResolver() Resolver {
	return Resolver{Patterns: DefaultBackMatter, MinRatio: DefaultMinRatio}
}

// Resolve uses the default resolver.
func Resolve(entries []Entry) (Bounds, error) {
	return DefaultResolver().Resolve(entries)
}

// WithPatterns returns a copy of r with extra case-insensitive title patterns
// appended after the existing ones.
func (r Resolver) WithPatterns(extra ...string) (Resolver, error) {
	patterns := make([]Pattern, len(r.Patterns), len(r.Patterns)+len(extra))
	copy(patterns, r.Patterns)
	for _, expr := range extra {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return r, fmt.Errorf("invalid back matter pattern %q: %w", expr, err)
		}
		patterns = append(patterns, Pattern{Expr: re, Meaning: "configured: " + expr})
	}
	r.Patterns = patterns
	return r, nil
}

// Resolve finds the first entry with a page number and the first later entry
// that looks like back matter. Entries are considered in TOC order, not page
// order.
func (r Resolver) Resolve(entries []Entry) (Bounds, error) {
	firstIdx := -1
	for i, e := range entries {
		if e.HasPage() {
			firstIdx = i
			break
		}
	}
	if firstIdx < 0 {
		return Bounds{}, ErrNoContentEntry
	}

	b := Bounds{First: entries[firstIdx]}

	for i := range entries {
		e := entries[i]
		if i == firstIdx || !e.HasPage() || e.Total <= 0 {
			continue
		}
		if float64(e.Page)/float64(e.Total) < r.MinRatio {
			continue
		}
		if meaning, ok := r.matchBackMatter(e.Title); ok {
			b.AfterLast = &e
			b.Match = meaning
			break
		}
	}

	return b, nil
}

func (r Resolver) matchBackMatter(title string) (string, bool) {
	for _, p := range r.Patterns {
		if p.Expr.MatchString(title) {
			return p.Meaning, true
		}
	}
	return "", false
}

// ContentPages returns the number of pages to capture: the back-matter page
// when one was found, otherwise the book total, never more than the total.
func (b Bounds) ContentPages() (int, error) {
	total := b.First.Total
	n := total
	if b.AfterLast != nil && b.AfterLast.Page < n {
		n = b.AfterLast.Page
	}
	if n <= 0 {
		return 0, ErrNoContentPages
	}
	return n, nil
}
