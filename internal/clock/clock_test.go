// ABOUTME: Tests for the presentation clock implementations
// ABOUTME: Manual clock determinism and standalone monotonicity
package clock

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	c := NewManual(1000)
	if c.NowUs() != 1000 {
		t.Errorf("NowUs = %d, want 1000", c.NowUs())
	}
	if c.NowNs() != 1_000_000 {
		t.Errorf("NowNs = %d, want 1000000", c.NowNs())
	}
	c.AdvanceUs(500)
	if c.NowUs() != 1500 {
		t.Errorf("after advance: %d, want 1500", c.NowUs())
	}
	c.SetUs(0)
	if c.ElapsedRealtimeUs() != 0 {
		t.Errorf("after set: %d, want 0", c.ElapsedRealtimeUs())
	}
}

func TestStandaloneMonotonic(t *testing.T) {
	c := NewStandalone()
	a := c.NowUs()
	time.Sleep(2 * time.Millisecond)
	b := c.NowUs()
	if b <= a {
		t.Errorf("clock did not advance: %d then %d", a, b)
	}
	if c.NowNs() < b*1000 {
		t.Error("NowNs inconsistent with NowUs")
	}
}
