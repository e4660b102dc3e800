// ABOUTME: Presentation clock abstraction for the playback engine
// ABOUTME: Provides monotonic microsecond time and per-tick snapshots
package clock

import "time"

// TimeUnset marks an unknown or not-yet-established microsecond time.
const TimeUnset = int64(-9223372036854775807)

// Clock provides monotonic time to all timing decisions. Implementations
// must never go backwards between calls.
type Clock interface {
	// NowUs returns monotonic time in microseconds.
	NowUs() int64

	// NowNs returns monotonic time in nanoseconds.
	NowNs() int64

	// ElapsedRealtimeUs returns elapsed real time in microseconds. It keeps
	// advancing while playback is paused.
	ElapsedRealtimeUs() int64
}

// Snapshot is a presentation clock reading taken atomically at the start of a
// render tick. Every decision within one tick uses the same snapshot.
type Snapshot struct {
	PositionUs        int64
	ElapsedRealtimeUs int64
}

// Standalone is a Clock backed by the system monotonic clock.
type Standalone struct {
	origin time.Time
}

// NewStandalone creates a clock whose origin is the moment of creation.
func NewStandalone() *Standalone {
	return &Standalone{origin: time.Now()}
}

func (c *Standalone) NowUs() int64 {
	return time.Since(c.origin).Microseconds()
}

func (c *Standalone) NowNs() int64 {
	return time.Since(c.origin).Nanoseconds()
}

func (c *Standalone) ElapsedRealtimeUs() int64 {
	return c.NowUs()
}

// Manual is a Clock advanced explicitly by tests.
type Manual struct {
	nowUs int64
}

// NewManual creates a manual clock starting at startUs.
func NewManual(startUs int64) *Manual {
	return &Manual{nowUs: startUs}
}

func (c *Manual) NowUs() int64 { return c.nowUs }

func (c *Manual) NowNs() int64 { return c.nowUs * 1000 }

func (c *Manual) ElapsedRealtimeUs() int64 { return c.nowUs }

// AdvanceUs moves the clock forward by deltaUs.
func (c *Manual) AdvanceUs(deltaUs int64) { c.nowUs += deltaUs }

// SetUs sets the absolute clock reading.
func (c *Manual) SetUs(nowUs int64) { c.nowUs = nowUs }
