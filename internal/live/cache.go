// Package live holds the process-wide latest observation published by
// the upstream collector. It is the single synchronization point
// between the LiveSource (one writer) and every connection handler
// (many readers).
package live

import (
	"sync"
	"time"

	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/trend"
)

// historyCap bounds the pressure history kept for trend derivation; at
// a one-minute publish cadence this comfortably covers the three-hour
// trend window.
const historyCap = 256

// Cache stores the most recent observation and the wall-clock time it
// was published, which the watchdog compares against, not the
// observation's own dateTime.
type Cache struct {
	mu        sync.RWMutex
	current   *types.Observation
	updatedAt time.Time
	pressure  []trend.Sample

	// clock is replaceable in tests.
	clock func() time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{clock: time.Now}
}

// Publish atomically replaces the cached observation. Observations are
// treated as immutable once published. When the collector supplies no
// barometerTrend, one is derived from the recent pressure history.
func (c *Cache) Publish(obs *types.Observation) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if obs.Barometer != nil {
		c.pressure = append(c.pressure, trend.Sample{Time: now, Barometer: *obs.Barometer})
		if len(c.pressure) > historyCap {
			c.pressure = c.pressure[len(c.pressure)-historyCap:]
		}
	}
	if obs.BarometerTrend == nil {
		if code, ok := trend.Code(c.pressure, now); ok {
			obs.BarometerTrend = types.Int(code)
		}
	}

	c.current = obs
	c.updatedAt = now
}

// Snapshot returns the current observation (nil before the first
// publish) and its publication time. The returned observation must not
// be mutated.
func (c *Cache) Snapshot() (*types.Observation, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.updatedAt
}

// Age reports how long ago the cache was last refreshed. Before the
// first publish it reports -1 so callers can tell "no data yet" apart
// from "stale data".
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.updatedAt.IsZero() {
		return -1
	}
	return c.clock().Sub(c.updatedAt)
}

// SetClock replaces the cache's time source, for tests.
func (c *Cache) SetClock(clock func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}
