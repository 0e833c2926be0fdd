package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	DefaultMaxAdvances     = 10
	DefaultPollsPerAdvance = 10
	DefaultPollInterval    = 100 * time.Millisecond
)

var errFingerprintUnchanged = errors.New("page fingerprint unchanged")

// NavigatorConfig bounds page-turn retries.
type NavigatorConfig struct {
	// MaxAdvances is how many times the advance action may be issued per page turn.
	MaxAdvances int
	// PollsPerAdvance is how many fingerprint checks follow each advance
	// before it is issued again.
	PollsPerAdvance int
	// PollInterval is the pause between fingerprint checks.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Navigator turns pages on a Surface whose advance action is unreliable.
// A page turn only counts once the page fingerprint has changed.
type Navigator struct {
	surface Surface
	cfg     NavigatorConfig
	logger  *slog.Logger
}

// NewNavigator creates a Navigator, filling unset config fields with defaults.
func NewNavigator(surface Surface, cfg NavigatorConfig) *Navigator {
	if cfg.MaxAdvances <= 0 {
		cfg.MaxAdvances = DefaultMaxAdvances
	}
	if cfg.PollsPerAdvance <= 0 {
		cfg.PollsPerAdvance = DefaultPollsPerAdvance
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{surface: surface, cfg: cfg, logger: logger}
}

// Next advances to the next page. It returns false when the fingerprint never
// changed within the retry ceiling, which callers treat as the end of
// navigable content. The only error returned is context cancellation.
func (n *Navigator) Next(ctx context.Context) (bool, error) {
	before, err := n.surface.Fingerprint(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		n.logger.Warn("unable to read page fingerprint; stopping navigation", "error", err)
		return false, nil
	}

	issued := 0
	err = retry.Do(
		func() error {
			issued++
			if issued > 1 {
				n.logger.Info("retrying navigation", "attempt", issued, "fingerprint", before)
			}
			if err := n.surface.Advance(ctx); err != nil {
				return fmt.Errorf("advance: %w", err)
			}
			for poll := 0; poll < n.cfg.PollsPerAdvance; poll++ {
				fp, err := n.surface.Fingerprint(ctx)
				if err == nil && fp != "" && fp != before {
					return nil
				}
				if err := sleep(ctx, n.cfg.PollInterval); err != nil {
					return retry.Unrecoverable(err)
				}
			}
			return errFingerprintUnchanged
		},
		retry.Context(ctx),
		retry.Attempts(uint(n.cfg.MaxAdvances)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	n.logger.Warn("unable to navigate to next page; stopping",
		"advances", issued,
		"fingerprint", before,
		"error", err,
	)
	return false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
