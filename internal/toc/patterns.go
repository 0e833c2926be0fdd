package toc

import "regexp"

// Pattern pairs a title expression with what a match means.
type Pattern struct {
	Expr    *regexp.Regexp
	Meaning string
}

// DefaultBackMatter lists titles that mark the end of the main content when
// they appear in the last decile of a book.
var DefaultBackMatter = []Pattern{
	{regexp.MustCompile(`(?i)acknowledgements`), "acknowledgements"},
	{regexp.MustCompile(`(?i)^discover more$`), "publisher promotion"},
	{regexp.MustCompile(`(?i)^extras$`), "extras"},
	{regexp.MustCompile(`(?i)about the author`), "author bio"},
	{regexp.MustCompile(`(?i)meet the author`), "author bio"},
	{regexp.MustCompile(`(?i)^also by `), "also by"},
	{regexp.MustCompile(`(?i)^copyright$`), "copyright"},
	{regexp.MustCompile(`(?i) teaser$`), "teaser"},
	{regexp.MustCompile(`(?i) preview$`), "preview"},
	{regexp.MustCompile(`(?i)^excerpt from`), "excerpt"},
	{regexp.MustCompile(`(?i)^cast of characters$`), "cast of characters"},
	{regexp.MustCompile(`(?i)^timeline$`), "timeline"},
	{regexp.MustCompile(`(?i)^other titles`), "other titles"},
}
