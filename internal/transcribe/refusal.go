package transcribe

import (
	"regexp"
	"unicode/utf8"
)

// MaxRefusalLength is the rune count below which output is checked for refusals.
// Longer output is assumed to be real page text.
const MaxRefusalLength = 100

// RefusalPattern is one apology or refusal phrasing.
type RefusalPattern struct {
	Expr    *regexp.Regexp
	Meaning string
}

// DefaultRefusals are matched case-insensitively against short output.
var DefaultRefusals = []RefusalPattern{
	{regexp.MustCompile(`(?i)i['’]?m sorry`), "apology"},
	{regexp.MustCompile(`(?i)i apologi[sz]e`), "apology"},
	{regexp.MustCompile(`(?i)i (?:can['’]?t|cannot|am unable to|'m unable to) (?:help|assist|transcribe|provide|read)`), "refusal"},
}

// DetectRefusal reports whether text looks like a refusal according to
// patterns, returning the matched pattern's meaning.
func DetectRefusal(text string, patterns []RefusalPattern) (string, bool) {
	if utf8.RuneCountInString(text) >= MaxRefusalLength {
		return "", false
	}
	for _, p := range patterns {
		if p.Expr.MatchString(text) {
			return p.Meaning, true
		}
	}
	return "", false
}
