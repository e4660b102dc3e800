// ABOUTME: Output device and surface interfaces consumed by the renderers
// ABOUTME: Narrow capability-based contracts replacing per-hardware subclassing
package device

import "errors"

// ReleaseImmediately is passed to Surface.ReleaseFrame when the frame should
// be displayed without waiting for a target release time.
const ReleaseImmediately = int64(-1)

// ErrNotOpen is returned by device operations before Play or after Release.
var ErrNotOpen = errors.New("device: not open")

// Capabilities describes what an output device can do. It is fixed at open
// time; the engine branches on it once during configuration, not per sample.
type Capabilities struct {
	// TimedRelease reports whether the device can honor a future release
	// time. Without it, Schedule decisions degrade to immediate render.
	TimedRelease bool

	// Offload reports whether the device supports the low-power compressed
	// streaming path.
	Offload bool

	// Passthrough reports whether compressed audio can be sent to the device
	// undecoded.
	Passthrough bool
}

// Output is the audio output device contract. Write must never block: it
// accepts as many bytes as fit and returns the count, which is the engine's
// backpressure signal.
type Output interface {
	// Write appends PCM or encoded bytes to the device buffer without
	// blocking. A short count means the buffer is full.
	Write(p []byte) (int, error)

	// PositionFrames returns the device hardware frame counter.
	PositionFrames() int64

	// BufferSize returns the device buffer capacity in bytes.
	BufferSize() int

	// LatencyUs returns the device-reported output latency.
	LatencyUs() int64

	Play() error
	Pause() error
	Stop() error
	Release() error

	Capabilities() Capabilities
}

// Surface receives finished video frames. releaseTimeNs is an absolute
// monotonic deadline, or ReleaseImmediately.
type Surface interface {
	ReleaseFrame(handle int64, releaseTimeNs int64) error
	Capabilities() Capabilities
}

// Identity names a physical output device for quirk lookups.
type Identity struct {
	Vendor   string `yaml:"vendor"`
	Model    string `yaml:"model"`
	Firmware string `yaml:"firmware"`
}

// Key returns the quirk table lookup key. Firmware is optional; entries
// without it match any firmware revision.
func (id Identity) Key() string {
	if id.Firmware == "" {
		return id.Vendor + "/" + id.Model
	}
	return id.Vendor + "/" + id.Model + "/" + id.Firmware
}
