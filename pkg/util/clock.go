package util

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/swaplabs/swapd/pkg/storage"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// TickSource is the logical clock consulted by the escrow engine.
// Ticks only move forward; expiration guards compare against CurrentTick.
type TickSource interface {
	CurrentTick() uint64
}

// TickClock maps wall time to ticks from a fixed genesis and interval.
type TickClock struct {
	genesis  time.Time
	interval time.Duration
	clock    Clock
}

func NewTickClock(genesis time.Time, interval time.Duration, clock Clock) *TickClock {
	if clock == nil {
		clock = RealClock{}
	}
	return &TickClock{genesis: genesis, interval: interval, clock: clock}
}

func (c *TickClock) CurrentTick() uint64 {
	elapsed := c.clock.Now().Sub(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.interval)
}

// ResumeTickClock restores the tick clock's genesis from the store, writing
// it on first boot. Order expirations are tick values that outlive the
// process, so the tick counter must keep counting across restarts; a clock
// re-anchored at boot time would drop below every live expiration and
// resurrect expired orders.
func ResumeTickClock(store *storage.PebbleStore, interval time.Duration, clock Clock) (*TickClock, error) {
	if clock == nil {
		clock = RealClock{}
	}

	raw, ok, err := store.Get(storage.GenesisKey())
	if err != nil {
		return nil, fmt.Errorf("failed to load clock genesis: %w", err)
	}

	var genesis time.Time
	if ok {
		if err := genesis.UnmarshalText(raw); err != nil {
			return nil, fmt.Errorf("corrupt clock genesis %q: %w", raw, err)
		}
	} else {
		genesis = clock.Now().UTC()
		data, err := genesis.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("failed to encode clock genesis: %w", err)
		}
		if err := store.Set(storage.GenesisKey(), data); err != nil {
			return nil, fmt.Errorf("failed to persist clock genesis: %w", err)
		}
	}

	return NewTickClock(genesis, interval, clock), nil
}

// ManualClock is a TickSource for tests: the tick moves only when told to.
type ManualClock struct {
	tick atomic.Uint64
}

func NewManualClock(tick uint64) *ManualClock {
	c := &ManualClock{}
	c.tick.Store(tick)
	return c
}

func (c *ManualClock) CurrentTick() uint64 { return c.tick.Load() }
func (c *ManualClock) Set(tick uint64)     { c.tick.Store(tick) }
func (c *ManualClock) Advance(n uint64)    { c.tick.Add(n) }
