package util

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/swaplabs/swapd/pkg/storage"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestTickClockMapsElapsedTime(t *testing.T) {
	genesis := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := &fakeClock{now: genesis}
	tc := NewTickClock(genesis, 400*time.Millisecond, fc)

	if got := tc.CurrentTick(); got != 0 {
		t.Errorf("tick at genesis = %d, want 0", got)
	}

	fc.now = genesis.Add(399 * time.Millisecond)
	if got := tc.CurrentTick(); got != 0 {
		t.Errorf("tick before first interval = %d, want 0", got)
	}

	fc.now = genesis.Add(400 * time.Millisecond)
	if got := tc.CurrentTick(); got != 1 {
		t.Errorf("tick at first interval = %d, want 1", got)
	}

	fc.now = genesis.Add(10 * time.Second)
	if got := tc.CurrentTick(); got != 25 {
		t.Errorf("tick after 10s = %d, want 25", got)
	}
}

func TestTickClockBeforeGenesisIsZero(t *testing.T) {
	genesis := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := &fakeClock{now: genesis.Add(-time.Hour)}
	tc := NewTickClock(genesis, 400*time.Millisecond, fc)

	if got := tc.CurrentTick(); got != 0 {
		t.Errorf("tick before genesis = %d, want 0", got)
	}
}

func TestResumeTickClockKeepsCountingAcrossRestarts(t *testing.T) {
	store, err := storage.NewPebbleStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	genesis := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := &fakeClock{now: genesis}

	tc, err := ResumeTickClock(store, 400*time.Millisecond, fc)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if got := tc.CurrentTick(); got != 0 {
		t.Errorf("tick at first boot = %d, want 0", got)
	}

	fc.now = genesis.Add(10 * time.Second)
	if got := tc.CurrentTick(); got != 25 {
		t.Errorf("tick after 10s = %d, want 25", got)
	}

	// A restarted process resumes from the persisted genesis, not from its
	// own boot time.
	fc2 := &fakeClock{now: genesis.Add(time.Hour)}
	tc2, err := ResumeTickClock(store, 400*time.Millisecond, fc2)
	if err != nil {
		t.Fatalf("resume after restart failed: %v", err)
	}
	if got := tc2.CurrentTick(); got != 9_000 {
		t.Errorf("tick after restart = %d, want 9000", got)
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(5)
	if got := c.CurrentTick(); got != 5 {
		t.Errorf("tick = %d, want 5", got)
	}
	c.Advance(3)
	if got := c.CurrentTick(); got != 8 {
		t.Errorf("tick = %d, want 8", got)
	}
	c.Set(100)
	if got := c.CurrentTick(); got != 100 {
		t.Errorf("tick = %d, want 100", got)
	}
}
