// ABOUTME: Synthetic sine tone decoder for demos and tests
// ABOUTME: Produces timestamped PCM samples in fixed-duration chunks
package source

import (
	"encoding/binary"
	"math"

	"github.com/playsync/playsync-go/internal/pipeline"
	"github.com/playsync/playsync-go/internal/renderer"
)

// toneChunkUs is the duration of one generated sample.
const toneChunkUs = 20_000

// Tone generates a sine wave as a stream of decoded samples.
type Tone struct {
	frequency  float64
	format     pipeline.Format
	durationUs int64

	frameIndex int64
	ended      bool
}

// NewTone creates a tone decoder. durationUs of zero means endless.
func NewTone(frequency float64, sampleRate, channels int, durationUs int64) *Tone {
	return &Tone{
		frequency: frequency,
		format: pipeline.Format{
			SampleRate: sampleRate,
			Channels:   channels,
			Encoding:   pipeline.EncodingPCM16,
		},
		durationUs: durationUs,
	}
}

// Format returns the PCM shape this decoder produces.
func (t *Tone) Format() pipeline.Format { return t.format }

// ReadSample synthesizes the next chunk. Never returns NotReady; generation
// is instantaneous.
func (t *Tone) ReadSample() (renderer.Sample, renderer.ReadResult) {
	if t.ended {
		return renderer.Sample{}, renderer.EndOfStream
	}

	ptsUs := t.format.FramesToDurationUs(t.frameIndex)
	if t.durationUs > 0 && ptsUs >= t.durationUs {
		t.ended = true
		return renderer.Sample{Flags: renderer.FlagEndOfStream}, renderer.SampleRead
	}

	frames := t.format.DurationToFrames(toneChunkUs)
	payload := make([]byte, frames*int64(t.format.BytesPerFrame()))
	for i := int64(0); i < frames; i++ {
		at := float64(t.frameIndex+i) / float64(t.format.SampleRate)
		v := int16(math.Sin(2*math.Pi*t.frequency*at) * 32767.0 * 0.5)
		for ch := 0; ch < t.format.Channels; ch++ {
			off := (i*int64(t.format.Channels) + int64(ch)) * 2
			binary.LittleEndian.PutUint16(payload[off:], uint16(v))
		}
	}
	t.frameIndex += frames

	flags := renderer.SampleFlags(renderer.FlagKeyframe)
	if t.durationUs > 0 && t.format.FramesToDurationUs(t.frameIndex) >= t.durationUs {
		flags |= renderer.FlagLastSample
	}
	return renderer.Sample{
		Payload:            payload,
		PresentationTimeUs: ptsUs,
		Flags:              flags,
	}, renderer.SampleRead
}
