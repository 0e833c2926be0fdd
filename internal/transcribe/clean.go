package transcribe

import (
	"regexp"
	"strings"
)

var leadingPageNumber = regexp.MustCompile(`\A\s*\d+[ \t\r]*\n+`)

// Clean normalizes raw model output: a leading line holding only a page
// number is dropped, every line is trimmed and blank lines are removed.
func Clean(raw string) string {
	text := leadingPageNumber.ReplaceAllString(raw, "")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
