// ABOUTME: Typed event queue between the engine internals and its listener
// ABOUTME: Single-consumer ordering without producers knowing the consumer thread
package events

import "sync"

// Event is a notification produced by renderers or the audio sink. Producers
// may post from any goroutine; the playback thread drains in order.
type Event interface{ event() }

// DroppedFrames reports frames discarded under load since the last report.
type DroppedFrames struct {
	Count     int
	ElapsedMs int64
}

// RenderedFirstFrame fires once when the first frame of a stream reaches the
// output surface.
type RenderedFirstFrame struct {
	ReleaseTimeNs int64
}

// Underrun reports the device buffer running dry while playing.
type Underrun struct {
	BufferSize       int
	BufferDurationUs int64
}

// OffloadBufferFull signals that an offloaded device accepted a short write
// while playing; the feed loop should back off until more space opens.
type OffloadBufferFull struct{}

// PositionDiscontinuity reports a re-sync of the media start time after an
// unexpected gap between expected and actual presentation timestamps.
type PositionDiscontinuity struct {
	AdjustmentUs int64
}

// SinkError carries a device error surfaced past the retry window.
type SinkError struct {
	Err error
}

// SilenceSkipped reports trimmed silence once it accumulates past the
// reporting threshold.
type SilenceSkipped struct {
	DurationUs int64
}

// StreamOffsetChanged reports a period transition re-basing queued samples.
type StreamOffsetChanged struct {
	OffsetUs int64
}

func (DroppedFrames) event()         {}
func (RenderedFirstFrame) event()    {}
func (Underrun) event()              {}
func (OffloadBufferFull) event()     {}
func (PositionDiscontinuity) event() {}
func (SinkError) event()             {}
func (SilenceSkipped) event()        {}
func (StreamOffsetChanged) event()   {}

// Queue is an ordered multi-producer, single-consumer event buffer.
type Queue struct {
	mu    sync.Mutex
	items []Event
}

// NewQueue creates an empty event queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Post appends an event. Safe from any goroutine.
func (q *Queue) Post(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
}

// Drain removes and returns all pending events in post order. Only the
// playback thread calls this.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
