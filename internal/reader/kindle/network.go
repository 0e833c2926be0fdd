package kindle

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jackzampolin/pageturn/internal/reader"
)

// Subscribe delivers finished responses whose URL satisfies match to fn.
// Bodies are fetched off the event loop since ListenTarget callbacks must
// not block.
func (s *Session) Subscribe(match func(url string) bool, fn func(reader.Response)) func() {
	lctx, cancel := context.WithCancel(s.ctx)

	var mu sync.Mutex
	seen := make(map[network.RequestID]reader.Response)

	chromedp.ListenTarget(lctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response == nil || !match(e.Response.URL) {
				return
			}
			mu.Lock()
			seen[e.RequestID] = reader.Response{URL: e.Response.URL, Status: int(e.Response.Status)}
			mu.Unlock()
		case *network.EventLoadingFinished:
			mu.Lock()
			resp, ok := seen[e.RequestID]
			delete(seen, e.RequestID)
			mu.Unlock()
			if !ok {
				return
			}
			go func(id network.RequestID, resp reader.Response) {
				c := chromedp.FromContext(lctx)
				if c == nil || c.Target == nil {
					return
				}
				body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(lctx, c.Target))
				if err != nil {
					if lctx.Err() == nil {
						s.logger.Debug("unable to read response body", "url", resp.URL, "error", err)
					}
					return
				}
				if lctx.Err() != nil {
					return
				}
				resp.Body = body
				fn(resp)
			}(e.RequestID, resp)
		}
	})

	return cancel
}
