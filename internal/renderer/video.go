// ABOUTME: Video track renderer releasing frames to a surface on schedule
// ABOUTME: Skips decode-only samples and recovers from bulk lateness via keyframes
package renderer

import (
	"github.com/sirupsen/logrus"

	"github.com/playsync/playsync-go/internal/clock"
	"github.com/playsync/playsync-go/internal/device"
	"github.com/playsync/playsync-go/internal/events"
	"github.com/playsync/playsync-go/internal/video"
)

// defaultMaxDroppedToNotify batches dropped-frame reports so one event covers
// a burst instead of one event per frame.
const defaultMaxDroppedToNotify = 50

// VideoRenderer drains a decoder through the release scheduler onto a
// surface. Frame handles are the renderer's own monotonic counter; the
// surface maps them to whatever its output stage needs.
type VideoRenderer struct {
	Base

	dec     Decoder
	sched   *video.Scheduler
	surface device.Surface
	clk     clock.Clock
	events  *events.Queue

	held      *Sample
	heldAdjUs int64
	handle    int64

	inputEnded       bool
	lastSampleShown  bool
	firstFrameShown  bool
	droppingToKey    bool
	dropped          int
	droppedStartUs   int64
	maxDroppedNotify int
}

// NewVideoRenderer binds a decoder to a surface through sched.
func NewVideoRenderer(dec Decoder, sched *video.Scheduler, surface device.Surface, clk clock.Clock, ev *events.Queue) *VideoRenderer {
	return &VideoRenderer{
		Base:             NewBase("video"),
		dec:              dec,
		sched:            sched,
		surface:          surface,
		clk:              clk,
		events:           ev,
		droppedStartUs:   clock.TimeUnset,
		maxDroppedNotify: defaultMaxDroppedToNotify,
	}
}

func (r *VideoRenderer) Enable(offsetUs int64) error {
	return r.enable(offsetUs)
}

func (r *VideoRenderer) Start() error {
	if err := r.start(); err != nil {
		return err
	}
	if r.sched.State() == video.Idle {
		r.sched.Join(r.clk.ElapsedRealtimeUs())
	}
	r.sched.Start()
	return nil
}

func (r *VideoRenderer) Stop() error {
	if err := r.stop(); err != nil {
		return err
	}
	r.sched.Stop()
	r.reportDropped()
	return nil
}

func (r *VideoRenderer) Disable() error {
	if err := r.disable(); err != nil {
		return err
	}
	r.reportDropped()
	r.held = nil
	r.inputEnded = false
	r.lastSampleShown = false
	r.firstFrameShown = false
	r.droppingToKey = false
	r.sched.Reset()
	return nil
}

// Render makes at most one release decision per held sample per tick, all
// against the tick's clock snapshot.
func (r *VideoRenderer) Render(positionUs, elapsedRealtimeUs int64) error {
	if r.State() == StateDisabled {
		return nil
	}

	for i := 0; i < maxSamplesPerTick; i++ {
		if r.held == nil && !r.advanceInput() {
			return nil
		}
		if r.held == nil {
			return nil
		}

		decision, info := r.sched.Decide(
			r.heldAdjUs, positionUs, elapsedRealtimeUs, r.StreamOffsetUs(), r.held.Is(FlagLastSample))

		switch decision {
		case video.RenderImmediately:
			r.releaseFrame(device.ReleaseImmediately, elapsedRealtimeUs)
		case video.Schedule:
			r.releaseFrame(info.ReleaseTimeNs, elapsedRealtimeUs)
		case video.Skip:
			// Coalesced with a neighboring frame; consumed but never shown.
			r.consumeHeld()
		case video.Drop:
			r.dropFrame(elapsedRealtimeUs)
			if r.sched.ShouldDropToKeyframe(info.EarlyUs, r.held != nil && r.held.Is(FlagLastSample)) {
				r.droppingToKey = true
			}
		case video.TryAgainLater, video.Ignore:
			return nil
		}
	}
	return nil
}

// advanceInput reads until a presentable sample is held. Returns false when
// the decoder has nothing presentable this tick.
func (r *VideoRenderer) advanceInput() bool {
	for {
		if r.inputEnded {
			return false
		}
		s, res := r.dec.ReadSample()
		if res == NotReady {
			return false
		}
		if res == EndOfStream || s.Is(FlagEndOfStream) {
			r.inputEnded = true
			return false
		}
		r.handle++
		if s.Is(FlagDecodeOnly) {
			continue
		}
		if r.droppingToKey {
			if !s.Is(FlagKeyframe) {
				r.countDrop(r.clk.ElapsedRealtimeUs())
				continue
			}
			r.droppingToKey = false
		}
		held := s
		r.held = &held
		r.heldAdjUs = s.PresentationTimeUs + r.StreamOffsetUs()
		return true
	}
}

func (r *VideoRenderer) releaseFrame(releaseTimeNs, elapsedRealtimeUs int64) {
	if err := r.surface.ReleaseFrame(r.handle, releaseTimeNs); err != nil {
		logrus.WithError(err).WithField("handle", r.handle).Warn("frame release failed")
		r.consumeHeld()
		return
	}
	releasedAtNs := releaseTimeNs
	if releaseTimeNs == device.ReleaseImmediately {
		releasedAtNs = r.clk.NowNs()
	}
	r.sched.OnFrameReleased(releasedAtNs, elapsedRealtimeUs)
	if !r.firstFrameShown {
		r.firstFrameShown = true
		r.events.Post(events.RenderedFirstFrame{ReleaseTimeNs: releasedAtNs})
	}
	r.consumeHeld()
}

func (r *VideoRenderer) dropFrame(elapsedRealtimeUs int64) {
	r.countDrop(elapsedRealtimeUs)
	r.consumeHeld()
}

func (r *VideoRenderer) countDrop(elapsedRealtimeUs int64) {
	if r.dropped == 0 {
		r.droppedStartUs = elapsedRealtimeUs
	}
	r.dropped++
	if r.dropped >= r.maxDroppedNotify {
		r.reportDropped()
	}
}

func (r *VideoRenderer) reportDropped() {
	if r.dropped == 0 {
		return
	}
	elapsedMs := int64(0)
	if r.droppedStartUs != clock.TimeUnset {
		elapsedMs = (r.clk.ElapsedRealtimeUs() - r.droppedStartUs) / 1000
	}
	r.events.Post(events.DroppedFrames{Count: r.dropped, ElapsedMs: elapsedMs})
	r.dropped = 0
	r.droppedStartUs = clock.TimeUnset
}

func (r *VideoRenderer) consumeHeld() {
	if r.held != nil && r.held.Is(FlagLastSample) {
		r.lastSampleShown = true
	}
	r.held = nil
}

func (r *VideoRenderer) OnPositionReset(positionUs int64) {
	r.held = nil
	r.inputEnded = false
	r.lastSampleShown = false
	r.droppingToKey = false
	r.sched.Reset()
	if r.State() == StateStarted {
		r.sched.Join(r.clk.ElapsedRealtimeUs())
		r.sched.Start()
	}
}

func (r *VideoRenderer) SetStreamOffset(offsetUs int64) {
	// The held frame keeps its adjusted time; scheduling state carries over
	// because the surface pipeline is unaffected by a timeline re-base.
	r.setStreamOffset(offsetUs)
}

func (r *VideoRenderer) IsReady() bool {
	return r.held != nil || r.firstFrameShown
}

func (r *VideoRenderer) IsEnded() bool {
	return (r.inputEnded || r.lastSampleShown) && r.held == nil
}

// DroppedFrameCount returns drops not yet batched into an event.
func (r *VideoRenderer) DroppedFrameCount() int { return r.dropped }
