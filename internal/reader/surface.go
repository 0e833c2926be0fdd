// Package reader defines the capabilities the extractor needs from a
// rendering surface and the retry driver that turns pages on it.
package reader

import "context"

// Surface is the reader UI as seen by the extractor. Implementations hide
// selectors, clicks and scrolling; callers only see document-level actions.
type Surface interface {
	// Open navigates to the document.
	Open(ctx context.Context, docID string) error

	// SignedOut reports whether the surface landed on an authentication flow.
	SignedOut(ctx context.Context) (bool, error)

	// Settle dismisses blocking prompts, freezes animated chrome and
	// normalizes display settings. Safe to repeat.
	Settle(ctx context.Context) error

	// FooterText returns the position text shown under the page.
	FooterText(ctx context.Context) (string, error)

	OpenTOC(ctx context.Context) error
	CloseTOC(ctx context.Context) error

	// TOCLen returns the number of table-of-contents rows.
	TOCLen(ctx context.Context) (int, error)

	// ActivateTOCEntry scrolls row i into view, activates it and returns its title.
	ActivateTOCEntry(ctx context.Context, i int) (string, error)

	// Fingerprint returns a cheap identifier of the rendered page (its image
	// source). It changes when the displayed page changes.
	Fingerprint(ctx context.Context) (string, error)

	// Capture returns a PNG of the page content region.
	Capture(ctx context.Context) ([]byte, error)

	// Advance issues the "next page" action. It may silently do nothing.
	Advance(ctx context.Context) error

	// GoToPage jumps to an arabic page number.
	GoToPage(ctx context.Context, page int) error

	// Subscribe delivers network responses whose URL satisfies match to fn
	// until the returned function is called. fn may be called from any goroutine.
	Subscribe(match func(url string) bool, fn func(Response)) (unsubscribe func())
}

// Response is a network response observed on the surface.
type Response struct {
	URL    string
	Status int
	Body   []byte
}
