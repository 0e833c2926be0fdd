package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MockPage is one screen of a MockSurface.
type MockPage struct {
	Footer      string
	Fingerprint string
	Image       []byte
}

// MockTOCRow is a table-of-contents row pointing at a page index.
type MockTOCRow struct {
	Title string
	Page  int
}

// MockSurface is a scripted Surface for tests.
type MockSurface struct {
	mu sync.Mutex

	Pages   []MockPage
	TOC     []MockTOCRow
	Current int

	// SignedOutAfterOpen simulates an expired session.
	SignedOutAfterOpen bool
	// SettleErr is returned from Settle.
	SettleErr error
	// AdvanceLag is how many fingerprint reads pass before an advance shows.
	AdvanceLag int
	// IgnoreAdvances drops this many advance actions before one takes effect.
	IgnoreAdvances int
	// AdvanceErr is returned from every Advance call when set.
	AdvanceErr error
	// GoToPageErr is returned from GoToPage.
	GoToPageErr error
	// Responses are delivered to subscribers when Open is called.
	Responses []Response

	Opens            int
	Advances         int
	FingerprintReads int
	Captures         int
	TOCActivations   []int
	GoToPageCalls    []int

	pending bool
	lag     int
	tocOpen bool
	subs    map[int]mockSub
	nextSub int
}

type mockSub struct {
	match func(string) bool
	fn    func(Response)
}

// NewMockBook builds a MockSurface with front-matter screens followed by
// pages 1..total, each with a distinct fingerprint and image.
func NewMockBook(frontMatter, total int) *MockSurface {
	m := &MockSurface{}
	for i := 1; i <= frontMatter; i++ {
		m.Pages = append(m.Pages, MockPage{
			Footer:      fmt.Sprintf("Location %d of %d", i, total*10),
			Fingerprint: fmt.Sprintf("blob:front-%d", i),
			Image:       []byte(fmt.Sprintf("png-front-%d", i)),
		})
	}
	for p := 1; p <= total; p++ {
		m.Pages = append(m.Pages, MockPage{
			Footer:      fmt.Sprintf("Page %d of %d", p, total),
			Fingerprint: fmt.Sprintf("blob:page-%d", p),
			Image:       []byte(fmt.Sprintf("png-page-%d", p)),
		})
	}
	return m
}

func (m *MockSurface) Open(_ context.Context, _ string) error {
	m.mu.Lock()
	m.Opens++
	subs := make([]mockSub, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	responses := append([]Response(nil), m.Responses...)
	m.mu.Unlock()

	for _, r := range responses {
		for _, s := range subs {
			if s.match(r.URL) {
				s.fn(r)
			}
		}
	}
	return nil
}

func (m *MockSurface) SignedOut(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SignedOutAfterOpen, nil
}

func (m *MockSurface) Settle(context.Context) error {
	return m.SettleErr
}

func (m *MockSurface) FooterText(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Current < 0 || m.Current >= len(m.Pages) {
		return "", nil
	}
	return m.Pages[m.Current].Footer, nil
}

func (m *MockSurface) OpenTOC(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tocOpen = true
	return nil
}

func (m *MockSurface) CloseTOC(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tocOpen = false
	return nil
}

func (m *MockSurface) TOCLen(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tocOpen {
		return 0, errors.New("table of contents is not open")
	}
	return len(m.TOC), nil
}

func (m *MockSurface) ActivateTOCEntry(_ context.Context, i int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tocOpen {
		return "", errors.New("table of contents is not open")
	}
	if i < 0 || i >= len(m.TOC) {
		return "", fmt.Errorf("no TOC row %d", i)
	}
	m.TOCActivations = append(m.TOCActivations, i)
	m.Current = m.TOC[i].Page
	m.pending = false
	return m.TOC[i].Title, nil
}

func (m *MockSurface) Fingerprint(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FingerprintReads++
	if m.pending {
		if m.lag == 0 {
			m.Current++
			m.pending = false
		} else {
			m.lag--
		}
	}
	if m.Current < 0 || m.Current >= len(m.Pages) {
		return "", nil
	}
	return m.Pages[m.Current].Fingerprint, nil
}

func (m *MockSurface) Capture(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Captures++
	if m.Current < 0 || m.Current >= len(m.Pages) {
		return nil, errors.New("nothing rendered")
	}
	return m.Pages[m.Current].Image, nil
}

func (m *MockSurface) Advance(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Advances++
	if m.AdvanceErr != nil {
		return m.AdvanceErr
	}
	if m.pending || m.Current+1 >= len(m.Pages) {
		return nil
	}
	if m.IgnoreAdvances > 0 {
		m.IgnoreAdvances--
		return nil
	}
	m.pending = true
	m.lag = m.AdvanceLag
	return nil
}

func (m *MockSurface) GoToPage(_ context.Context, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GoToPageCalls = append(m.GoToPageCalls, page)
	if m.GoToPageErr != nil {
		return m.GoToPageErr
	}
	want := fmt.Sprintf("Page %d of ", page)
	for i, p := range m.Pages {
		if strings.HasPrefix(p.Footer, want) {
			m.Current = i
			m.pending = false
			return nil
		}
	}
	return fmt.Errorf("page %d not found", page)
}

func (m *MockSurface) Subscribe(match func(string) bool, fn func(Response)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[int]mockSub)
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = mockSub{match: match, fn: fn}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Subscribers returns the number of active subscriptions.
func (m *MockSurface) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Verify interface
var _ Surface = (*MockSurface)(nil)
