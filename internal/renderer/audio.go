// ABOUTME: Audio track renderer feeding decoded samples into the output sink
// ABOUTME: Re-offers the same held sample under backpressure, at most once consumed
package renderer

import (
	"github.com/playsync/playsync-go/internal/pipeline"
	"github.com/playsync/playsync-go/internal/sink"
)

// maxSamplesPerTick bounds how much decoding one render tick may pull so a
// fast decoder cannot starve the other renderers.
const maxSamplesPerTick = 16

// AudioRenderer drains a decoder into the audio sink. The sink's media
// position drives the whole engine's playback clock.
type AudioRenderer struct {
	Base

	dec    Decoder
	sink   *sink.Sink
	format pipeline.Format

	held        *Sample
	heldAdjUs   int64
	inputEnded  bool
	signaledEOS bool
}

// NewAudioRenderer binds a decoder producing samples in format to snk.
func NewAudioRenderer(dec Decoder, snk *sink.Sink, format pipeline.Format) *AudioRenderer {
	return &AudioRenderer{
		Base:   NewBase("audio"),
		dec:    dec,
		sink:   snk,
		format: format,
	}
}

func (r *AudioRenderer) Enable(offsetUs int64) error {
	if err := r.enable(offsetUs); err != nil {
		return err
	}
	return r.sink.Configure(r.format)
}

func (r *AudioRenderer) Start() error {
	if err := r.start(); err != nil {
		return err
	}
	r.sink.Play()
	return nil
}

func (r *AudioRenderer) Stop() error {
	if err := r.stop(); err != nil {
		return err
	}
	r.sink.Pause()
	return nil
}

func (r *AudioRenderer) Disable() error {
	if err := r.disable(); err != nil {
		return err
	}
	r.held = nil
	r.inputEnded = false
	r.signaledEOS = false
	r.sink.Reset()
	return nil
}

// Render pulls samples from the decoder and offers them to the sink. A
// sample refused under backpressure stays held and is re-offered, unmodified,
// on the next tick.
func (r *AudioRenderer) Render(positionUs, elapsedRealtimeUs int64) error {
	if r.State() == StateDisabled {
		return nil
	}

	for i := 0; i < maxSamplesPerTick; i++ {
		if r.held == nil {
			if r.inputEnded {
				break
			}
			s, res := r.dec.ReadSample()
			if res == NotReady {
				return nil
			}
			if res == EndOfStream || s.Is(FlagEndOfStream) {
				r.inputEnded = true
				break
			}
			if s.Is(FlagDecodeOnly) {
				continue
			}
			r.held = &s
			r.heldAdjUs = s.PresentationTimeUs + r.StreamOffsetUs()
		}

		ok, err := r.sink.HandleBuffer(r.held.Payload, r.heldAdjUs)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		r.held = nil
	}

	if r.inputEnded && !r.signaledEOS {
		if err := r.sink.PlayToEndOfStream(); err != nil {
			return err
		}
		if r.sink.IsEnded() {
			r.signaledEOS = true
		}
	}
	return nil
}

// PositionUs exposes the sink's media position as the engine clock source.
func (r *AudioRenderer) PositionUs() (int64, error) {
	return r.sink.PositionUs(r.inputEnded)
}

func (r *AudioRenderer) OnPositionReset(positionUs int64) {
	r.held = nil
	r.inputEnded = false
	r.signaledEOS = false
	r.sink.Flush()
}

func (r *AudioRenderer) SetStreamOffset(offsetUs int64) {
	// The held sample keeps its already-adjusted time; only samples read
	// after the change pick up the new offset.
	r.setStreamOffset(offsetUs)
}

func (r *AudioRenderer) IsReady() bool {
	return r.held != nil || r.sink.HasPendingData()
}

func (r *AudioRenderer) IsEnded() bool {
	return r.inputEnded && r.sink.IsEnded()
}

// SetPlaybackParameters forwards a speed/pitch change to the sink.
func (r *AudioRenderer) SetPlaybackParameters(params sink.PlaybackParameters) {
	r.sink.SetPlaybackParameters(params)
}

// SetSkipSilence forwards the silence-trimming toggle to the sink.
func (r *AudioRenderer) SetSkipSilence(enabled bool) {
	r.sink.SetSkipSilence(enabled)
}
