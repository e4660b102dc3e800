// ABOUTME: Tests for the device position tracker
// ABOUTME: Covers spurious rejection, stalls, strict mode and latency clamping
package timing

import (
	"errors"
	"testing"

	"github.com/playsync/playsync-go/internal/device"
)

type stubOutput struct {
	frames    int64
	latencyUs int64
}

func (s *stubOutput) Write(p []byte) (int, error)       { return len(p), nil }
func (s *stubOutput) PositionFrames() int64             { return s.frames }
func (s *stubOutput) BufferSize() int                   { return 4096 }
func (s *stubOutput) LatencyUs() int64                  { return s.latencyUs }
func (s *stubOutput) Play() error                       { return nil }
func (s *stubOutput) Pause() error                      { return nil }
func (s *stubOutput) Stop() error                       { return nil }
func (s *stubOutput) Release() error                    { return nil }
func (s *stubOutput) Capabilities() device.Capabilities { return device.Capabilities{} }

func TestSpuriousReadingRejectedAndExtrapolated(t *testing.T) {
	out := &stubOutput{}
	tr := NewPositionTracker(out, 48000, device.Quirks{}, nil)

	if _, err := tr.Advance(0); err != nil {
		t.Fatal(err)
	}

	// The counter jumps ten seconds ahead in 10ms of wall time.
	out.frames = 48000 * 10
	sample, err := tr.Advance(10_000)
	if err != nil {
		t.Fatal(err)
	}
	if tr.RejectedReadings() != 1 {
		t.Errorf("rejected readings = %d, want 1", tr.RejectedReadings())
	}
	// Position extrapolates from the previous offset instead of jumping.
	if sample.PositionUs > 20_000 {
		t.Errorf("position %dus followed the spurious jump", sample.PositionUs)
	}
}

func TestStrictModeFailsOnSpuriousReading(t *testing.T) {
	out := &stubOutput{}
	tr := NewPositionTracker(out, 48000, device.Quirks{}, nil)
	tr.SetStrict(true)

	if _, err := tr.Advance(0); err != nil {
		t.Fatal(err)
	}
	out.frames = 48000 * 10
	if _, err := tr.Advance(10_000); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("strict mode returned %v, want ErrInvalidTimestamp", err)
	}
}

func TestPositionNeverRegresses(t *testing.T) {
	out := &stubOutput{}
	tr := NewPositionTracker(out, 48000, device.Quirks{}, nil)

	last := int64(-1)
	nowUs := int64(0)
	for i := 0; i < 50; i++ {
		// Jittery but tolerable counter: alternately ahead and behind.
		jitter := int64(0)
		if i%2 == 0 {
			jitter = 80_000
		}
		out.frames = (nowUs + jitter) * 48 / 1000
		sample, err := tr.Advance(nowUs)
		if err != nil {
			t.Fatal(err)
		}
		if sample.PositionUs < last {
			t.Fatalf("position regressed from %d to %d at tick %d", last, sample.PositionUs, i)
		}
		last = sample.PositionUs
		nowUs += 10_000
	}
}

func TestStallDetection(t *testing.T) {
	out := &stubOutput{}
	pending := int64(100)
	tr := NewPositionTracker(out, 48000, device.Quirks{}, func() int64 { return pending })

	if _, err := tr.Advance(0); err != nil {
		t.Fatal(err)
	}
	out.frames = 480
	if _, err := tr.Advance(10_000); err != nil {
		t.Fatal(err)
	}

	// Counter freezes with data pending.
	nowUs := int64(20_000)
	var stalled bool
	for ; nowUs <= 1_200_000; nowUs += 10_000 {
		sample, err := tr.Advance(nowUs)
		if err != nil {
			t.Fatal(err)
		}
		if sample.Stalled {
			stalled = true
			break
		}
	}
	if !stalled {
		t.Fatal("stall never detected")
	}
	if nowUs < 1_000_000 {
		t.Errorf("stall detected at %dus, before the timeout", nowUs)
	}
}

func TestPauseFreezesPositionAndStall(t *testing.T) {
	out := &stubOutput{}
	tr := NewPositionTracker(out, 48000, device.Quirks{}, func() int64 { return 100 })

	nowUs := int64(0)
	var last PositionSample
	for ; nowUs < 100_000; nowUs += 10_000 {
		out.frames = nowUs * 48 / 1000
		var err error
		if last, err = tr.Advance(nowUs); err != nil {
			t.Fatal(err)
		}
	}

	// The counter legitimately freezes while paused. The reported position
	// must freeze with it and the stall detector must stay quiet, even with
	// data pending far past the stall timeout.
	tr.SetPlaying(false, nowUs)
	frozen := last.PositionUs
	for ; nowUs <= 1_600_000; nowUs += 10_000 {
		sample, err := tr.Advance(nowUs)
		if err != nil {
			t.Fatal(err)
		}
		if sample.Stalled {
			t.Fatal("stall reported while paused")
		}
		if sample.PositionUs != frozen {
			t.Fatalf("position moved to %d while paused, want frozen at %d", sample.PositionUs, frozen)
		}
	}

	// Resume: the counter picks up where it stopped. Position must continue
	// without regressing, tripping the spurious filter, or a phantom stall.
	tr.SetPlaying(true, nowUs)
	resumeFrames := out.frames
	for i := int64(1); i <= 20; i++ {
		out.frames = resumeFrames + i*480
		sample, err := tr.Advance(nowUs + i*10_000)
		if err != nil {
			t.Fatal(err)
		}
		if sample.PositionUs < frozen {
			t.Fatalf("position regressed to %d after resume", sample.PositionUs)
		}
		if sample.Stalled {
			t.Fatal("stall reported right after resume")
		}
	}
	if tr.RejectedReadings() != 0 {
		t.Errorf("resume tripped the spurious-reading filter %d times", tr.RejectedReadings())
	}
}

func TestStallSuppressedByQuirk(t *testing.T) {
	out := &stubOutput{}
	tr := NewPositionTracker(out, 48000, device.Quirks{StallFlushDisabled: true}, func() int64 { return 100 })

	tr.Advance(0)
	out.frames = 480
	tr.Advance(10_000)
	for nowUs := int64(20_000); nowUs <= 1_200_000; nowUs += 10_000 {
		sample, err := tr.Advance(nowUs)
		if err != nil {
			t.Fatal(err)
		}
		if sample.Stalled {
			t.Fatal("stall reported despite the suppression quirk")
		}
	}
}

func TestLatencyClampQuirk(t *testing.T) {
	out := &stubOutput{frames: 48000, latencyUs: 10_000_000}
	quirks := device.Quirks{ClampLatency: true, MaxLatencyUs: 100_000}
	tr := NewPositionTracker(out, 48000, quirks, nil)

	sample, err := tr.Advance(0)
	if err != nil {
		t.Fatal(err)
	}
	// One second played minus the clamped 100ms latency.
	if sample.PositionUs != 900_000 {
		t.Errorf("position %dus, want 900000 with clamped latency", sample.PositionUs)
	}
}

func TestResetForgetsHistory(t *testing.T) {
	out := &stubOutput{frames: 48000}
	tr := NewPositionTracker(out, 48000, device.Quirks{}, nil)
	tr.Advance(0)

	tr.Reset()
	out.frames = 0
	sample, err := tr.Advance(0)
	if err != nil {
		t.Fatal(err)
	}
	if sample.PositionUs != 0 {
		t.Errorf("position after reset = %d, want 0", sample.PositionUs)
	}
}
