// ABOUTME: Immutable audio sink configuration and playback parameters
// ABOUTME: Pending configurations swap immediately only when output-shape reusable
package sink

import (
	"github.com/playsync/playsync-go/internal/pipeline"
)

// OutputMode selects the device path for a configuration.
type OutputMode int

const (
	// ModePCM plays uncompressed audio through the processing chain.
	ModePCM OutputMode = iota

	// ModeOffload streams compressed audio through the device's low-power
	// path.
	ModeOffload

	// ModePassthrough sends compressed audio to the device undecoded.
	ModePassthrough
)

func (m OutputMode) String() string {
	switch m {
	case ModePCM:
		return "pcm"
	case ModeOffload:
		return "offload"
	case ModePassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// OffloadState is the sink's offload availability state machine.
type OffloadState int

const (
	// OffloadDisabled means offload was not requested or not supported.
	OffloadDisabled OffloadState = iota

	// OffloadEnabled means the current configuration streams offloaded.
	OffloadEnabled

	// OffloadDisabledUntilReconfigure means offload failed on this
	// configuration and will not be retried until the sink is reconfigured.
	OffloadDisabledUntilReconfigure
)

// PlaybackParameters is the speed/pitch pair applied to playout.
type PlaybackParameters struct {
	Speed float64
	Pitch float64
}

// DefaultPlaybackParameters plays at recorded speed.
var DefaultPlaybackParameters = PlaybackParameters{Speed: 1.0, Pitch: 1.0}

// IsDefault reports whether the parameters leave playout unscaled.
func (p PlaybackParameters) IsDefault() bool {
	return p.Speed == 1.0 && p.Pitch == 1.0
}

// defaultBufferDurationUs sizes the device buffer when the caller does not.
const defaultBufferDurationUs = 250_000

// Configuration is an immutable snapshot of how the sink maps an input
// format onto the output device.
type Configuration struct {
	InputFormat  pipeline.Format
	OutputFormat pipeline.Format
	Mode         OutputMode
	BufferSize   int // bytes
}

// CanReuse reports whether the active device can carry this configuration
// without a teardown: same output shape, mode and buffer size.
func (c Configuration) CanReuse(active Configuration) bool {
	return c.OutputFormat == active.OutputFormat &&
		c.Mode == active.Mode &&
		c.BufferSize == active.BufferSize
}

// framesToDurationUs converts output frames to playout duration.
func (c Configuration) framesToDurationUs(frames int64) int64 {
	return c.OutputFormat.FramesToDurationUs(frames)
}

// inputFramesToDurationUs converts input frames to media duration.
func (c Configuration) inputFramesToDurationUs(frames int64) int64 {
	return c.InputFormat.FramesToDurationUs(frames)
}

func defaultBufferSize(f pipeline.Format) int {
	return int(f.DurationToFrames(defaultBufferDurationUs)) * f.BytesPerFrame()
}
