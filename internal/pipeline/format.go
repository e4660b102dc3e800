// ABOUTME: Audio format descriptions used across the output pipeline
// ABOUTME: Defines encodings, frame sizes and duration conversions
package pipeline

import "fmt"

// Encoding identifies the sample encoding of a stream.
type Encoding int

const (
	EncodingInvalid Encoding = iota

	// EncodingPCM16 is 16-bit little-endian interleaved PCM. The only
	// encoding the processing chain operates on.
	EncodingPCM16

	// EncodingAC3 and EncodingEAC3 are compressed encodings that bypass the
	// chain and play via passthrough or offload.
	EncodingAC3
	EncodingEAC3
)

func (e Encoding) String() string {
	switch e {
	case EncodingPCM16:
		return "pcm16"
	case EncodingAC3:
		return "ac3"
	case EncodingEAC3:
		return "eac3"
	default:
		return "invalid"
	}
}

// IsPCM reports whether the encoding is uncompressed.
func (e Encoding) IsPCM() bool { return e == EncodingPCM16 }

// Format describes an audio stream shape.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz %dch %s", f.SampleRate, f.Channels, f.Encoding)
}

// Valid reports whether the format is fully specified.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.Encoding != EncodingInvalid
}

// BytesPerFrame returns the interleaved frame size. Only meaningful for PCM.
func (f Format) BytesPerFrame() int {
	return f.Channels * 2
}

// FramesToDurationUs converts a frame count at this format's rate.
func (f Format) FramesToDurationUs(frames int64) int64 {
	return frames * 1_000_000 / int64(f.SampleRate)
}

// DurationToFrames converts a duration to frames at this format's rate.
func (f Format) DurationToFrames(durationUs int64) int64 {
	return durationUs * int64(f.SampleRate) / 1_000_000
}
