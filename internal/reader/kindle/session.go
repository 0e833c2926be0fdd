// Package kindle implements reader.Surface on the Kindle Cloud Reader through
// a Chrome DevTools session.
package kindle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jackzampolin/pageturn/internal/reader"
)

const (
	DefaultWidth             = 1280
	DefaultHeight            = 720
	DefaultDeviceScaleFactor = 2
	DefaultNavigationTimeout = 30 * time.Second
	DefaultActionTimeout     = 10 * time.Second
	DefaultLoginTimeout      = 30 * time.Second
)

// ErrLoginFailed is returned when the reader was not reached after signing in.
var ErrLoginFailed = errors.New("kindle login failed")

// Config holds browser session settings.
type Config struct {
	BaseURL           string
	Headless          bool
	ExecPath          string
	UserDataDir       string
	Width             int
	Height            int
	DeviceScaleFactor float64
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	LoginTimeout      time.Duration
	Logger            *slog.Logger
}

// Session is a running Chrome tab pointed at the reader.
type Session struct {
	cfg    Config
	logger *slog.Logger

	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewSession launches Chrome and prepares a tab with network events and
// device metrics emulation enabled.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.DeviceScaleFactor <= 0 {
		cfg.DeviceScaleFactor = DefaultDeviceScaleFactor
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = DefaultLoginTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("hide-crash-restore-bubble", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	err := chromedp.Run(tabCtx,
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(cfg.Width), int64(cfg.Height), cfg.DeviceScaleFactor, false),
	)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("browser session started", "headless", cfg.Headless, "user_data_dir", cfg.UserDataDir)
	return &Session{
		cfg:         cfg,
		logger:      logger,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Close shuts down the tab and the browser process.
func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

// ReaderURL returns the reader address for a document.
func (s *Session) ReaderURL(docID string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/?asin=" + url.QueryEscape(docID)
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	rctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Login opens the reader for docID and signs in when redirected to the
// sign-in page, then waits for the reader to load.
func (s *Session) Login(ctx context.Context, docID, email, password string) error {
	if err := s.Open(ctx, docID); err != nil {
		return err
	}
	out, err := s.SignedOut(ctx)
	if err != nil {
		return err
	}
	if !out {
		s.logger.Info("already signed in")
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", ErrLoginFailed)
	}

	s.logger.Info("signing in")
	err = s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.SendKeys(selEmail, email, chromedp.ByQuery),
		chromedp.Click(selSubmit, chromedp.ByQuery),
		chromedp.WaitVisible(selPassword, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, password, chromedp.ByQuery),
		chromedp.Click(selSubmit, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	want := s.ReaderURL(docID)
	interval := 500 * time.Millisecond
	err = retry.Do(
		func() error {
			var loc string
			if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&loc)); err != nil {
				return err
			}
			if !strings.HasPrefix(loc, want) {
				return fmt.Errorf("still at %s", loc)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.LoginTimeout/interval)),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	s.logger.Info("signed in")
	return nil
}

func (s *Session) Open(ctx context.Context, docID string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(s.ReaderURL(docID))); err != nil {
		return fmt.Errorf("failed to open reader for %s: %w", docID, err)
	}
	return nil
}

func (s *Session) SignedOut(ctx context.Context) (bool, error) {
	var loc string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&loc)); err != nil {
		return false, fmt.Errorf("failed to read location: %w", err)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return false, fmt.Errorf("failed to parse location %q: %w", loc, err)
	}
	return strings.Contains(u.Path, signInPath), nil
}

func (s *Session) Settle(ctx context.Context) error {
	err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Evaluate(jsClickByText(selAlertButtons, "No"), nil),
		chromedp.Evaluate(fmt.Sprintf(`(() => {
			const el = document.querySelector(%s);
			if (el) { el.style.transition = "none"; el.style.transform = "none"; }
			return true;
		})()`, strconv.Quote(selTopChrome)), nil),
	)
	if err != nil {
		return fmt.Errorf("failed to prepare reader chrome: %w", err)
	}

	err = s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Click(selSettings, chromedp.ByQuery),
		chromedp.Sleep(settingsOpenDelay),
		chromedp.Click(selFontEmber, chromedp.ByQuery),
		chromedp.Click(selSingleColumn, chromedp.ByQuery),
		chromedp.Click(selSettings, chromedp.ByQuery),
		chromedp.Sleep(settingsCloseDelay),
	)
	if err != nil {
		return fmt.Errorf("failed to update reader settings: %w", err)
	}
	return nil
}

func (s *Session) FooterText(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(jsQueryProp(selFooter, "textContent"), &text)); err != nil {
		return "", fmt.Errorf("failed to read footer: %w", err)
	}
	return text, nil
}

func (s *Session) OpenTOC(ctx context.Context) error {
	return s.toggleTOC(ctx)
}

func (s *Session) CloseTOC(ctx context.Context) error {
	return s.toggleTOC(ctx)
}

func (s *Session) toggleTOC(ctx context.Context) error {
	err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Click(selTOCButton, chromedp.ByQuery),
		chromedp.Sleep(tocOpenDelay),
	)
	if err != nil {
		return fmt.Errorf("failed to toggle table of contents: %w", err)
	}
	return nil
}

func (s *Session) TOCLen(ctx context.Context) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, strconv.Quote(selTOCRows))
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("failed to count TOC rows: %w", err)
	}
	return n, nil
}

type tocRow struct {
	OK    bool   `json:"ok"`
	Title string `json:"title"`
}

func (s *Session) ActivateTOCEntry(ctx context.Context, i int) (string, error) {
	expr := fmt.Sprintf(`(() => {
		const row = document.querySelectorAll(%s)[%d];
		const btn = row && row.querySelector(%s);
		if (!btn) return {ok: false, title: ""};
		btn.scrollIntoView({block: "center"});
		const title = btn.getAttribute("aria-label") || "";
		btn.click();
		return {ok: true, title};
	})()`, strconv.Quote(selTOCRows), i, strconv.Quote(selTOCRowButton))

	var row tocRow
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(expr, &row), chromedp.Sleep(tocEntryDelay)); err != nil {
		return "", fmt.Errorf("failed to activate TOC row %d: %w", i, err)
	}
	if !row.OK {
		return "", fmt.Errorf("TOC row %d not found", i)
	}
	return row.Title, nil
}

func (s *Session) Fingerprint(ctx context.Context) (string, error) {
	var src string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(jsQueryAttr(selPageImage, "src"), &src)); err != nil {
		return "", fmt.Errorf("failed to read page image: %w", err)
	}
	return src, nil
}

func (s *Session) Capture(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Screenshot(selPageImage, &buf, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to capture page: %w", err)
	}
	return buf, nil
}

func (s *Session) Advance(ctx context.Context) error {
	return s.run(ctx, nextClickTimeout, chromedp.Click(selNext, chromedp.ByQuery))
}

func (s *Session) GoToPage(ctx context.Context, page int) error {
	hover := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		for (const type of ["mouseenter", "mouseover", "mousemove"]) {
			el.dispatchEvent(new MouseEvent(type, {bubbles: true}));
		}
		return true;
	})()`, strconv.Quote(selHeader))

	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Sleep(menuDelay),
		chromedp.Evaluate(hover, nil),
		chromedp.Sleep(hoverDelay),
		chromedp.Click(selNavMenu, chromedp.ByQuery),
		chromedp.Sleep(menuDelay),
		chromedp.Evaluate(jsClickByText(selListItems, "Go to Page"), nil),
		chromedp.WaitVisible(selGoToInput, chromedp.ByQuery),
		chromedp.SetValue(selGoToInput, "", chromedp.ByQuery),
		chromedp.SendKeys(selGoToInput, strconv.Itoa(page), chromedp.ByQuery),
		chromedp.Click(selGoToButton, chromedp.ByQuery),
		chromedp.Sleep(menuDelay),
	)
	if err != nil {
		return fmt.Errorf("failed to go to page %d: %w", page, err)
	}
	return nil
}

// jsQueryProp reads a property of the first element matching sel, or "".
func jsQueryProp(sel, prop string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? String(el[%s] ?? "") : ""; })()`,
		strconv.Quote(sel), strconv.Quote(prop))
}

func jsQueryAttr(sel, attr string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? (el.getAttribute(%s) || "") : ""; })()`,
		strconv.Quote(sel), strconv.Quote(attr))
}

// jsClickByText clicks the first visible element matching sel whose text
// contains text. It reports whether anything was clicked.
func jsClickByText(sel, text string) string {
	return fmt.Sprintf(`(() => {
		for (const el of document.querySelectorAll(%s)) {
			if (el.offsetParent !== null && (el.textContent || "").includes(%s)) { el.click(); return true; }
		}
		return false;
	})()`, strconv.Quote(sel), strconv.Quote(text))
}

// Verify interface
var _ reader.Surface = (*Session)(nil)
