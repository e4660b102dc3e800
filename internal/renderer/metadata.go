// ABOUTME: Metadata track renderer emitting payloads at their presentation time
// ABOUTME: Queues decoded items and re-bases them when the stream offset changes
package renderer

import (
	"github.com/playsync/playsync-go/internal/emission"
	"github.com/playsync/playsync-go/internal/events"
)

// maxPendingMetadata bounds buffered items so a fast decoder cannot grow the
// queue without limit between emissions.
const maxPendingMetadata = 16

// EmitFunc receives a due payload with its playback-timeline time.
type EmitFunc func(payload []byte, timeUs int64)

// MetadataRenderer holds decoded metadata until the playback position
// reaches each item's time, then hands it to the emit callback. In early
// mode items are emitted as soon as they are decoded.
type MetadataRenderer struct {
	Base

	dec    Decoder
	queue  *emission.Queue[[]byte]
	emit   EmitFunc
	events *events.Queue

	inputEnded bool
}

// NewMetadataRenderer binds a decoder to an emit callback. mode selects
// synced or early emission.
func NewMetadataRenderer(dec Decoder, mode emission.Mode, emit EmitFunc, ev *events.Queue) *MetadataRenderer {
	return &MetadataRenderer{
		Base:   NewBase("metadata"),
		dec:    dec,
		queue:  emission.NewQueue[[]byte](mode),
		emit:   emit,
		events: ev,
	}
}

func (r *MetadataRenderer) Enable(offsetUs int64) error { return r.enable(offsetUs) }
func (r *MetadataRenderer) Start() error                { return r.start() }
func (r *MetadataRenderer) Stop() error                 { return r.stop() }

func (r *MetadataRenderer) Disable() error {
	if err := r.disable(); err != nil {
		return err
	}
	r.queue.Clear()
	r.inputEnded = false
	return nil
}

// Render fills the queue from the decoder, then emits everything due at this
// tick's position. Input is bounded per tick so an always-ready decoder
// cannot starve the other renderers on the playback thread.
func (r *MetadataRenderer) Render(positionUs, elapsedRealtimeUs int64) error {
	if r.State() == StateDisabled {
		return nil
	}

	for i := 0; !r.inputEnded && i < maxSamplesPerTick && r.queue.Len() < maxPendingMetadata; i++ {
		s, res := r.dec.ReadSample()
		if res == NotReady {
			break
		}
		if res == EndOfStream || s.Is(FlagEndOfStream) {
			r.inputEnded = true
			break
		}
		if s.Is(FlagDecodeOnly) {
			continue
		}
		r.queue.Push(s.Payload, s.PresentationTimeUs+r.StreamOffsetUs())
	}

	for {
		payload, timeUs, ok := r.queue.PopIfDue(positionUs)
		if !ok {
			break
		}
		r.emit(payload, timeUs)
	}
	return nil
}

func (r *MetadataRenderer) OnPositionReset(positionUs int64) {
	r.queue.Clear()
	r.inputEnded = false
}

// SetStreamOffset shifts every queued item onto the new timeline. Items stay
// scheduled across the change.
func (r *MetadataRenderer) SetStreamOffset(offsetUs int64) {
	delta := r.setStreamOffset(offsetUs)
	if delta != 0 {
		r.queue.Rebase(delta)
		r.events.Post(events.StreamOffsetChanged{OffsetUs: offsetUs})
	}
}

// IsReady is always true; metadata never gates playback start.
func (r *MetadataRenderer) IsReady() bool { return true }

func (r *MetadataRenderer) IsEnded() bool {
	return r.inputEnded && r.queue.Len() == 0
}

// PendingCount returns queued items not yet due.
func (r *MetadataRenderer) PendingCount() int { return r.queue.Len() }
