// Package backtest implements the deterministic simulation core: the
// virtual clock, the in-memory order ledger, the matching engine that
// settles orders against combined data tiles, and the simulated trading
// client that mirrors the live order-management surface.
package backtest

import (
	"sync"
	"time"

	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/golog"
)

// Ticker receives one simulation tick covering [from, to). The matching
// engine implements it; the clock drives it.
type Ticker interface {
	Tick(from, to time.Time) error
}

// Clock provides "current time" to backtest-aware code. In disabled mode it
// reads the wall clock with no side effects. In enabled mode every
// non-frozen read returns the current virtual time, triggers one simulation
// tick and advances by exactly the timestep, so the n-th non-frozen read is
// always initial + n*timestep regardless of wall-clock drift. The mode is
// fixed at construction; there are no process-wide toggles.
type Clock struct {
	mu       sync.Mutex // guards now, ticker, tickErr
	tickMu   sync.Mutex // serializes non-frozen reads
	enabled  bool
	now      time.Time
	timestep time.Duration
	ticker   Ticker
	tickErr  error
	logger   *golog.Logger
}

// NewWallClock creates a disabled clock that reads real time.
func NewWallClock() *Clock {
	return &Clock{
		enabled: false,
		logger:  common.DefaultLogger(),
	}
}

// NewVirtualClock creates an enabled clock starting at initial and
// advancing by timestep per non-frozen read.
func NewVirtualClock(initial time.Time, timestep time.Duration) *Clock {
	if timestep <= 0 {
		timestep = time.Second
	}
	return &Clock{
		enabled:  true,
		now:      initial.UTC(),
		timestep: timestep,
		logger:   common.DefaultLogger(),
	}
}

// SetTicker attaches the tick receiver. Separate from construction because
// the engine needs the clock's frozen reads while the clock needs the
// engine's ticks.
func (c *Clock) SetTicker(t Ticker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticker = t
}

// Enabled reports whether the clock is virtual.
func (c *Clock) Enabled() bool {
	return c.enabled
}

// Timestep returns the configured step, zero for a wall clock.
func (c *Clock) Timestep() time.Duration {
	return c.timestep
}

// Now returns the current time. Frozen reads never advance or tick; they
// exist for read-only time inspection that must not perturb the simulation.
// A non-frozen read on an enabled clock returns the pending virtual time,
// runs one tick over [now, now+timestep) and then advances. The first tick
// failure is logged and retained (see Err) and stops further ticking; the
// clock itself keeps advancing so one bad tile cannot wedge time, but a
// run with a dead source is not replayed against it.
func (c *Clock) Now(frozen bool) time.Time {
	if !c.enabled {
		return time.Now().UTC()
	}

	if frozen {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.now
	}

	// Non-frozen reads are serialized, and the state lock is released while
	// the ticker runs so the tick can freeze-read the clock.
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.mu.Lock()
	now := c.now
	ticker := c.ticker
	if c.tickErr != nil {
		// A failed run stops ticking; time still advances.
		ticker = nil
	}
	c.mu.Unlock()

	var tickErr error
	if ticker != nil {
		if tickErr = ticker.Tick(now, now.Add(c.timestep)); tickErr != nil {
			c.logger.Error("Simulation tick failed",
				golog.String("at", now.Format(time.RFC3339)),
				golog.String("error", tickErr.Error()))
		}
	}

	c.mu.Lock()
	c.now = now.Add(c.timestep)
	if tickErr != nil && c.tickErr == nil {
		c.tickErr = tickErr
	}
	c.mu.Unlock()
	return now
}

// Err returns the first tick failure, if any. Fatal source errors surface
// here; callers treat them as the end of the run.
func (c *Clock) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickErr
}
