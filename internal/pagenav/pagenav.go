// Package pagenav parses the reader footer ("Page 12 of 300", "Location 40 of 6120")
// into a normalized position.
package pagenav

import (
	"fmt"
	"regexp"
	"strconv"
)

// Position is a parsed footer position. Exactly one of Page or Location is
// set (non-zero) on any Position returned by Parse.
type Position struct {
	Page     int `json:"page,omitempty"`
	Location int `json:"location,omitempty"`
	Total    int `json:"total"`
}

// HasPage reports whether the position carries an arabic page number.
func (p Position) HasPage() bool {
	return p.Page > 0
}

// HasLocation reports whether the position is a front/back-matter location.
func (p Position) HasLocation() bool {
	return p.Location > 0
}

func (p Position) String() string {
	if p.HasPage() {
		return fmt.Sprintf("page %d of %d", p.Page, p.Total)
	}
	return fmt.Sprintf("location %d of %d", p.Location, p.Total)
}

var (
	pagePattern     = regexp.MustCompile(`(?i)page\s+(\d+)\s+of\s+(\d+)`)
	locationPattern = regexp.MustCompile(`(?i)location\s+(\d+)\s+of\s+(\d+)`)
	romanPattern    = regexp.MustCompile(`(?i)page\s+([cdilmvx]+)\s+of\s+(\d+)`)
)

// Parse extracts a Position from footer text. The patterns are tried in order
// (arabic page, location, roman page) and the first one that matches decides
// the result. A match with unusable numbers returns false rather than
// falling through to the next pattern.
//
// Roman page numbers are front matter, so they are reported as locations.
func Parse(text string) (Position, bool) {
	if m := pagePattern.FindStringSubmatch(text); m != nil {
		page, ok1 := atoi(m[1])
		total, ok2 := atoi(m[2])
		if !ok1 || !ok2 {
			return Position{}, false
		}
		return Position{Page: page, Total: total}, true
	}

	if m := locationPattern.FindStringSubmatch(text); m != nil {
		loc, ok1 := atoi(m[1])
		total, ok2 := atoi(m[2])
		if !ok1 || !ok2 {
			return Position{}, false
		}
		return Position{Location: loc, Total: total}, true
	}

	if m := romanPattern.FindStringSubmatch(text); m != nil {
		loc, ok1 := Deromanize(m[1])
		total, ok2 := atoi(m[2])
		if !ok1 || !ok2 {
			return Position{}, false
		}
		return Position{Location: loc, Total: total}, true
	}

	return Position{}, false
}

// atoi parses a positive integer.
func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
