// ABOUTME: Renderer lifecycle state machine and the decoder sample contract
// ABOUTME: Concrete track renderers embed Base and drive their output stage
package renderer

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SampleFlags annotate a decoded sample.
type SampleFlags uint8

const (
	// FlagEndOfStream marks the final signal from the decoder; the sample
	// carries no payload.
	FlagEndOfStream SampleFlags = 1 << iota

	// FlagDecodeOnly marks a sample needed for decoder state but never
	// presented, e.g. frames before a seek target.
	FlagDecodeOnly

	// FlagKeyframe marks a sample decodable without reference to earlier
	// samples.
	FlagKeyframe

	// FlagLastSample marks the final presentable sample of the stream.
	FlagLastSample
)

// Sample is one decoded unit handed to a renderer.
type Sample struct {
	Payload            []byte
	PresentationTimeUs int64
	Flags              SampleFlags
}

// Is reports whether all given flags are set.
func (s Sample) Is(f SampleFlags) bool { return s.Flags&f == f }

// ReadResult is the outcome of a non-blocking decoder read.
type ReadResult int

const (
	// SampleRead means a sample was produced.
	SampleRead ReadResult = iota

	// NotReady means no sample is available yet; try again next tick.
	NotReady

	// EndOfStream means the decoder has no further samples.
	EndOfStream
)

// Decoder produces decoded samples without blocking. How samples come to
// exist is outside this package's concern.
type Decoder interface {
	ReadSample() (Sample, ReadResult)
}

// State is a renderer's lifecycle state.
type State int

const (
	// StateDisabled holds no track and no resources.
	StateDisabled State = iota

	// StateEnabled has a track and buffers data but does not advance.
	StateEnabled

	// StateStarted actively renders against the playback position.
	StateStarted

	// StateStopped holds its track and buffered data but does not render.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Renderer is one track's output driver. All methods run on the playback
// goroutine.
type Renderer interface {
	Name() string
	State() State

	// Enable binds the renderer to its track. offsetUs is the stream offset
	// added to sample times to place them on the playback timeline.
	Enable(offsetUs int64) error
	Start() error
	Stop() error
	Disable() error

	// Render advances output against one clock snapshot. It must not block.
	Render(positionUs, elapsedRealtimeUs int64) error

	// OnPositionReset discards in-flight output after a seek or flush.
	OnPositionReset(positionUs int64)

	// SetStreamOffset re-bases pending output onto a new stream offset.
	// Pending items are rescheduled, never dropped.
	SetStreamOffset(offsetUs int64)

	// IsReady reports whether playback may start or continue.
	IsReady() bool

	// IsEnded reports whether the renderer has fully played out its track.
	IsEnded() bool
}

// Base carries the lifecycle state machine shared by all renderers.
type Base struct {
	name           string
	state          State
	streamOffsetUs int64
}

// NewBase names the renderer for logs.
func NewBase(name string) Base {
	return Base{name: name}
}

func (b *Base) Name() string          { return b.name }
func (b *Base) State() State          { return b.state }
func (b *Base) StreamOffsetUs() int64 { return b.streamOffsetUs }

func (b *Base) enable(offsetUs int64) error {
	if b.state != StateDisabled {
		return fmt.Errorf("renderer %s: enable from %s", b.name, b.state)
	}
	b.streamOffsetUs = offsetUs
	b.setState(StateEnabled)
	return nil
}

func (b *Base) start() error {
	if b.state != StateEnabled && b.state != StateStopped {
		return fmt.Errorf("renderer %s: start from %s", b.name, b.state)
	}
	b.setState(StateStarted)
	return nil
}

func (b *Base) stop() error {
	if b.state != StateStarted {
		return fmt.Errorf("renderer %s: stop from %s", b.name, b.state)
	}
	b.setState(StateStopped)
	return nil
}

func (b *Base) disable() error {
	if b.state != StateEnabled && b.state != StateStopped {
		return fmt.Errorf("renderer %s: disable from %s", b.name, b.state)
	}
	b.setState(StateDisabled)
	return nil
}

// setStreamOffset updates the offset and returns the delta for re-basing.
func (b *Base) setStreamOffset(offsetUs int64) int64 {
	delta := offsetUs - b.streamOffsetUs
	b.streamOffsetUs = offsetUs
	return delta
}

func (b *Base) setState(next State) {
	logrus.WithFields(logrus.Fields{
		"renderer": b.name,
		"from":     b.state.String(),
		"to":       next.String(),
	}).Debug("renderer state")
	b.state = next
}
