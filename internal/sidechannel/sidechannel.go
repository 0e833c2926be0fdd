// Package sidechannel collects document metadata from network responses the
// reader fetches on its own while a document opens.
package sidechannel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/pageturn/internal/reader"
)

const (
	InfoPath   = "/service/mobile/reader/startReading"
	MetaSuffix = "YJmetadata.jsonp"

	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 500 * time.Millisecond
)

// ErrMetadataTimeout is returned when either payload did not arrive in time.
var ErrMetadataTimeout = errors.New("document metadata not received")

// Keys dropped from payloads before they are persisted.
var (
	infoScrubbed = []string{"karamelToken", "metadataUrl", "YJFormatVersion"}
	metaScrubbed = []string{"cpr"}
)

// Collector gathers the info and meta payloads for one document.
type Collector struct {
	docID string
	host  string

	mu   sync.Mutex
	info map[string]any
	meta map[string]any
}

// NewCollector creates a Collector for docID whose info payload is served from host.
func NewCollector(docID, host string) *Collector {
	return &Collector{docID: docID, host: host}
}

// Wants reports whether url can carry one of the collector's payloads.
func (c *Collector) Wants(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return c.isInfo(u) || isMeta(u)
}

func (c *Collector) isInfo(u *url.URL) bool {
	return u.Hostname() == c.host &&
		u.Path == InfoPath &&
		strings.EqualFold(u.Query().Get("asin"), c.docID)
}

func isMeta(u *url.URL) bool {
	return strings.HasSuffix(u.Path, MetaSuffix)
}

// Handle applies a response. Responses that are not 200, do not decode, or
// belong to another document are ignored.
func (c *Collector) Handle(resp reader.Response) {
	if resp.Status != http.StatusOK {
		return
	}
	u, err := url.Parse(resp.URL)
	if err != nil {
		return
	}

	switch {
	case c.isInfo(u):
		var body map[string]any
		if err := json.Unmarshal(resp.Body, &body); err != nil || body == nil {
			return
		}
		for _, k := range infoScrubbed {
			delete(body, k)
		}
		c.mu.Lock()
		c.info = body
		c.mu.Unlock()

	case isMeta(u):
		body, err := ParseJSONP(resp.Body)
		if err != nil {
			return
		}
		if asin, _ := body["asin"].(string); asin != c.docID {
			return
		}
		for _, k := range metaScrubbed {
			delete(body, k)
		}
		if authors, ok := body["authorsList"].([]any); ok {
			body["authorsList"] = NormalizeAuthors(authors)
		}
		c.mu.Lock()
		c.meta = body
		c.mu.Unlock()
	}
}

// Received returns the payloads collected so far.
func (c *Collector) Received() (info, meta map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info, c.meta
}

// Wait polls until both payloads have arrived. Non-positive arguments use
// the defaults.
func (c *Collector) Wait(ctx context.Context, timeout, interval time.Duration) (info, meta map[string]any, err error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	// One check at the start, then one after every interval up to timeout.
	attempts := uint(timeout/interval) + 1

	err = retry.Do(
		func() error {
			info, meta = c.Received()
			if info == nil || meta == nil {
				return ErrMetadataTimeout
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w for %s (info=%t meta=%t)", ErrMetadataTimeout, c.docID, info != nil, meta != nil)
	}
	return info, meta, nil
}

// ParseJSONP decodes the object wrapped in a JSONP callback such as fn({...});
func ParseJSONP(body []byte) (map[string]any, error) {
	start := bytes.IndexByte(body, '(')
	end := bytes.LastIndexByte(body, ')')
	if start < 0 || end <= start {
		return nil, errors.New("not a JSONP response")
	}
	var out map[string]any
	if err := json.Unmarshal(body[start+1:end], &out); err != nil {
		return nil, fmt.Errorf("invalid JSONP payload: %w", err)
	}
	if out == nil {
		return nil, errors.New("empty JSONP payload")
	}
	return out, nil
}

// NormalizeAuthors rewrites "Last, First" names as "First Last". Other
// values are kept as they are.
func NormalizeAuthors(authors []any) []any {
	out := make([]any, len(authors))
	for i, a := range authors {
		name, ok := a.(string)
		if !ok {
			out[i] = a
			continue
		}
		last, first, found := strings.Cut(name, ",")
		if !found || strings.Contains(first, ",") {
			out[i] = strings.TrimSpace(name)
			continue
		}
		out[i] = strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	}
	return out
}
