package reader

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testNavigator(s Surface) *Navigator {
	return NewNavigator(s, NavigatorConfig{PollInterval: time.Microsecond})
}

func TestNavigator_ImmediateChange(t *testing.T) {
	m := NewMockBook(0, 3)

	ok, err := testNavigator(m).Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok {
		t.Fatal("Next() = false, want true")
	}
	if m.Advances != 1 {
		t.Errorf("Advances = %d, want 1", m.Advances)
	}
	// One read before advancing, one read that observed the change.
	if m.FingerprintReads != 2 {
		t.Errorf("FingerprintReads = %d, want 2", m.FingerprintReads)
	}
	if m.Current != 1 {
		t.Errorf("Current = %d, want 1", m.Current)
	}
}

func TestNavigator_LaggingRender(t *testing.T) {
	m := NewMockBook(0, 3)
	m.AdvanceLag = 4

	ok, err := testNavigator(m).Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v; want true, nil", ok, err)
	}
	if m.Advances != 1 {
		t.Errorf("Advances = %d, want 1 (polling should absorb render lag)", m.Advances)
	}
	if m.FingerprintReads != 1+5 {
		t.Errorf("FingerprintReads = %d, want 6", m.FingerprintReads)
	}
}

func TestNavigator_ReissuesDroppedAdvance(t *testing.T) {
	m := NewMockBook(0, 3)
	m.IgnoreAdvances = 3

	ok, err := testNavigator(m).Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v; want true, nil", ok, err)
	}
	if m.Advances != 4 {
		t.Errorf("Advances = %d, want 4", m.Advances)
	}
	// Each dropped advance is followed by a full round of polls.
	if want := 1 + 3*DefaultPollsPerAdvance + 1; m.FingerprintReads != want {
		t.Errorf("FingerprintReads = %d, want %d", m.FingerprintReads, want)
	}
}

func TestNavigator_EndOfBook(t *testing.T) {
	m := NewMockBook(0, 2)
	m.Current = 1

	ok, err := testNavigator(m).Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ok {
		t.Fatal("Next() = true at the last page")
	}
	if m.Advances != DefaultMaxAdvances {
		t.Errorf("Advances = %d, want %d", m.Advances, DefaultMaxAdvances)
	}
	if want := 1 + DefaultMaxAdvances*DefaultPollsPerAdvance; m.FingerprintReads != want {
		t.Errorf("FingerprintReads = %d, want %d", m.FingerprintReads, want)
	}
}

func TestNavigator_AdvanceErrorsCountAgainstCeiling(t *testing.T) {
	m := NewMockBook(0, 3)
	m.AdvanceErr = errors.New("element not interactable")

	nav := NewNavigator(m, NavigatorConfig{MaxAdvances: 3, PollInterval: time.Microsecond})
	ok, err := nav.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ok {
		t.Fatal("Next() = true with failing advance")
	}
	if m.Advances != 3 {
		t.Errorf("Advances = %d, want 3", m.Advances)
	}
}

func TestNavigator_ContextCancelled(t *testing.T) {
	m := NewMockBook(0, 2)
	m.Current = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := NewNavigator(m, NavigatorConfig{PollInterval: time.Millisecond}).Next(ctx)
	if ok {
		t.Fatal("Next() = true after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Next() error = %v, want context.Canceled", err)
	}
}

func TestNewNavigator_Defaults(t *testing.T) {
	nav := NewNavigator(NewMockBook(0, 1), NavigatorConfig{})
	if nav.cfg.MaxAdvances != DefaultMaxAdvances {
		t.Errorf("MaxAdvances = %d", nav.cfg.MaxAdvances)
	}
	if nav.cfg.PollsPerAdvance != DefaultPollsPerAdvance {
		t.Errorf("PollsPerAdvance = %d", nav.cfg.PollsPerAdvance)
	}
	if nav.cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %s", nav.cfg.PollInterval)
	}
}
