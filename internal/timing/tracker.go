// ABOUTME: Audio device position tracker with jitter detrending
// ABOUTME: Converts hardware frame counts into a smoothed media position
package timing

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/playsync/playsync-go/internal/device"
)

// ErrInvalidTimestamp is returned in strict mode when the device reports a
// position inconsistent with elapsed wall time. Outside strict mode the
// reading is logged and dropped instead.
var ErrInvalidTimestamp = errors.New("timing: invalid device timestamp")

const (
	// How often the hardware counter is re-sampled. Between samples the
	// position is extrapolated from the smoothed offset.
	sampleIntervalUs = 10_000

	// A new reading is spurious when it disagrees with elapsed wall time by
	// more than this.
	spuriousToleranceUs = 100_000

	// No device progress for this long while data is pending means a stall.
	stallTimeoutUs = 1_000_000

	// Latency reports beyond this are considered absurd and clamped.
	maxReportedLatencyUs = 5_000_000

	// Weight given to a new offset reading, as in the clock drift smoother.
	smoothingRate = 0.1
)

// PositionSample is one Advance result.
type PositionSample struct {
	PositionUs int64
	Stalled    bool
}

// PositionTracker detrends the device hardware frame counter into a smooth
// position-in-time. It rejects spurious readings, clamps latency outliers and
// detects stalled devices.
type PositionTracker struct {
	out        device.Output
	quirks     device.Quirks
	sampleRate int

	// pendingFrames reports frames written to the device but possibly not
	// yet played; used to distinguish a stall from normal idleness.
	pendingFrames func() int64

	strict  bool
	playing bool

	offsetUs         float64 // smoothed devicePosition - now
	hasOffset        bool
	lastSampleUs     int64
	lastRawUs        int64
	lastProgressUs   int64
	lastPositionUs   int64
	rejectedReadings int64
}

// NewPositionTracker creates a tracker for a device playing at sampleRate.
func NewPositionTracker(out device.Output, sampleRate int, quirks device.Quirks, pendingFrames func() int64) *PositionTracker {
	return &PositionTracker{
		out:           out,
		quirks:        quirks,
		sampleRate:    sampleRate,
		pendingFrames: pendingFrames,
		lastSampleUs:  -sampleIntervalUs,
		playing:       true,
	}
}

// SetPlaying tells the tracker whether playout is running. The counter
// legitimately freezes during a pause, so sampling suspends, the reported
// position holds, and stall detection disarms until resume.
func (t *PositionTracker) SetPlaying(playing bool, nowUs int64) {
	if t.playing == playing {
		return
	}
	t.playing = playing
	if playing {
		// The offset learned before the pause is stale by the pause
		// duration; re-anchor from a fresh sample.
		t.hasOffset = false
		t.lastSampleUs = nowUs - sampleIntervalUs
		if t.lastProgressUs > 0 {
			t.lastProgressUs = nowUs
		}
	}
}

// SetStrict enables the debug-only mode where spurious readings fail instead
// of being dropped.
func (t *PositionTracker) SetStrict(strict bool) { t.strict = strict }

// Advance samples or extrapolates the device position at nowUs. While paused
// the position holds at its last value; expected progress is zero.
func (t *PositionTracker) Advance(nowUs int64) (PositionSample, error) {
	if !t.playing {
		return PositionSample{PositionUs: t.lastPositionUs}, nil
	}
	if nowUs-t.lastSampleUs >= sampleIntervalUs {
		if err := t.sampleDevice(nowUs); err != nil {
			return PositionSample{}, err
		}
	}

	var positionUs int64
	if t.hasOffset {
		positionUs = nowUs + int64(t.offsetUs)
	}
	if positionUs < t.lastPositionUs {
		// Smoothing must never move the reported position backwards.
		positionUs = t.lastPositionUs
	}
	t.lastPositionUs = positionUs

	return PositionSample{
		PositionUs: positionUs,
		Stalled:    t.isStalled(nowUs),
	}, nil
}

// Reset forgets all device history, e.g. after a flush created a new device.
func (t *PositionTracker) Reset() {
	t.offsetUs = 0
	t.hasOffset = false
	t.lastSampleUs = -sampleIntervalUs
	t.lastRawUs = 0
	t.lastProgressUs = 0
	t.lastPositionUs = 0
}

// RejectedReadings returns how many spurious readings have been discarded.
func (t *PositionTracker) RejectedReadings() int64 { return t.rejectedReadings }

func (t *PositionTracker) sampleDevice(nowUs int64) error {
	rawUs := t.framesToUs(t.out.PositionFrames()) - t.clampedLatencyUs()
	if rawUs < 0 {
		rawUs = 0
	}

	elapsed := nowUs - t.lastSampleUs
	if t.hasOffset {
		expectedUs := t.lastRawUs + elapsed
		driftUs := rawUs - expectedUs
		if driftUs > spuriousToleranceUs || driftUs < -spuriousToleranceUs {
			t.rejectedReadings++
			logrus.WithFields(logrus.Fields{
				"rawUs":      rawUs,
				"expectedUs": expectedUs,
				"driftUs":    driftUs,
			}).Warn("rejecting spurious device position reading")
			if t.strict {
				return ErrInvalidTimestamp
			}
			// Keep extrapolating from the previous offset.
			t.lastSampleUs = nowUs
			return nil
		}
	}

	if rawUs > t.lastRawUs {
		t.lastProgressUs = nowUs
	}

	offset := float64(rawUs - nowUs)
	if !t.hasOffset {
		t.offsetUs = offset
		t.hasOffset = true
	} else {
		t.offsetUs += smoothingRate * (offset - t.offsetUs)
	}
	t.lastRawUs = rawUs
	t.lastSampleUs = nowUs
	return nil
}

func (t *PositionTracker) isStalled(nowUs int64) bool {
	if !t.playing || t.quirks.StallFlushDisabled {
		return false
	}
	if t.pendingFrames == nil || t.pendingFrames() <= 0 {
		return false
	}
	return t.lastProgressUs > 0 && nowUs-t.lastProgressUs > stallTimeoutUs
}

func (t *PositionTracker) clampedLatencyUs() int64 {
	latency := t.out.LatencyUs()
	limit := int64(maxReportedLatencyUs)
	if t.quirks.ClampLatency && t.quirks.MaxLatencyUs > 0 {
		limit = t.quirks.MaxLatencyUs
	}
	if latency > limit {
		logrus.WithFields(logrus.Fields{
			"latencyUs": latency,
			"limitUs":   limit,
		}).Warn("clamping absurd device latency report")
		latency = limit
	}
	if latency < 0 {
		latency = 0
	}
	return latency
}

func (t *PositionTracker) framesToUs(frames int64) int64 {
	return frames * 1_000_000 / int64(t.sampleRate)
}
