// ABOUTME: Per-frame release decision engine for video output
// ABOUTME: Decides render-now, schedule, drop, skip or retry for each decoded frame
package video

import (
	"github.com/sirupsen/logrus"

	"github.com/playsync/playsync-go/internal/clock"
	"github.com/playsync/playsync-go/internal/device"
)

// Decision is the release verdict for one sample in one tick.
type Decision int

const (
	// RenderImmediately releases the frame now, ignoring its exact deadline.
	RenderImmediately Decision = iota

	// Schedule hands the frame to the output stage with a target release
	// time; the device does the precise timing.
	Schedule

	// Drop discards the frame because it is too late to be useful.
	Drop

	// Skip discards the frame without counting it as dropped, e.g. when it
	// would land on the same release tick as the previous frame.
	Skip

	// TryAgainLater means the frame is too early; do not consume it and
	// re-evaluate on the next tick.
	TryAgainLater

	// Ignore means the scheduler is not in a state that releases frames.
	Ignore
)

func (d Decision) String() string {
	switch d {
	case RenderImmediately:
		return "render"
	case Schedule:
		return "schedule"
	case Drop:
		return "drop"
	case Skip:
		return "skip"
	case TryAgainLater:
		return "try-again"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// State is the scheduler lifecycle state.
type State int

const (
	Idle State = iota
	Joining
	Started
	Stopped
)

const (
	// Frames later than this are dropped.
	lateThresholdUs = -30_000

	// Frames later than this are candidates for bulk drop-to-keyframe.
	veryLateThresholdUs = -500_000

	// A late frame is force-rendered if nothing was released for this long,
	// to avoid a frozen picture.
	forceRenderElapsedUs = 100_000

	// Frames within this window of the playback position are handed to the
	// device for timed release.
	scheduleWindowUs = 50_000

	// Without timed release support, frames render once they are this close
	// to their deadline.
	immediateWindowUs = 30_000

	// Default grace period after Join during which frames release
	// immediately rather than waiting for exact timing.
	DefaultJoiningGraceUs = 1_000_000

	// Coalescing separation when the content frame rate is still unknown.
	defaultMinReleaseSeparationNs = 2_000_000

	maxReleaseSeparationNs = 4_000_000
)

// ReleaseInfo carries the timing computed alongside a Decision.
type ReleaseInfo struct {
	EarlyUs       int64
	ReleaseTimeNs int64
}

// CoalescePolicy decides whether a frame scheduled at releaseTimeNs would
// collide with the previously released frame and should be skipped. The
// duplicate-release heuristic is device-specific, so it is pluggable.
type CoalescePolicy func(releaseTimeNs, lastReleaseTimeNs, minSeparationNs int64) bool

// DefaultCoalescePolicy skips frames closer to the previous release than the
// minimum separation derived from the estimated content frame rate.
func DefaultCoalescePolicy(releaseTimeNs, lastReleaseTimeNs, minSeparationNs int64) bool {
	delta := releaseTimeNs - lastReleaseTimeNs
	if delta < 0 {
		delta = -delta
	}
	return delta < minSeparationNs
}

// NoCoalesce releases every frame regardless of spacing.
func NoCoalesce(releaseTimeNs, lastReleaseTimeNs, minSeparationNs int64) bool {
	return false
}

// Scheduler decides, per decoded video frame, whether and when it is
// released to the output surface.
type Scheduler struct {
	clk              clock.Clock
	timedRelease     bool
	coalesce         CoalescePolicy
	joiningGraceUs   int64
	state            State
	joinDeadlineUs   int64
	firstFrameDone   bool
	lastReleaseNs    int64
	lastScheduledNs  int64
	lastReleaseRtUs  int64
	lastSampleTimeUs int64
	avgFrameDeltaUs  float64
}

// NewScheduler creates a scheduler. timedRelease reports whether the output
// surface can honor future release times; without it Schedule degrades to
// immediate rendering near the deadline.
func NewScheduler(clk clock.Clock, timedRelease bool, coalesce CoalescePolicy) *Scheduler {
	if coalesce == nil {
		coalesce = DefaultCoalescePolicy
	}
	return &Scheduler{
		clk:              clk,
		timedRelease:     timedRelease,
		coalesce:         coalesce,
		joiningGraceUs:   DefaultJoiningGraceUs,
		lastReleaseNs:    clock.TimeUnset,
		lastScheduledNs:  clock.TimeUnset,
		lastReleaseRtUs:  clock.TimeUnset,
		lastSampleTimeUs: clock.TimeUnset,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return s.state }

// Join enters the joining grace period, during which frames are released
// immediately so a seamless transition never blocks first-frame display.
// Rate-estimation state resets because the new stream may have a different
// cadence.
func (s *Scheduler) Join(elapsedRealtimeUs int64) {
	s.state = Joining
	s.joinDeadlineUs = elapsedRealtimeUs + s.joiningGraceUs
	s.resetRateEstimation()
}

// Start begins normal scheduling. A scheduler started without Join skips the
// grace period but still releases its first frame immediately.
func (s *Scheduler) Start() {
	if s.state != Joining {
		s.state = Started
	}
}

// Stop halts frame release decisions.
func (s *Scheduler) Stop() {
	s.state = Stopped
}

// Reset returns the scheduler to Idle and clears all history, e.g. after a
// seek.
func (s *Scheduler) Reset() {
	s.state = Idle
	s.firstFrameDone = false
	s.lastReleaseNs = clock.TimeUnset
	s.lastScheduledNs = clock.TimeUnset
	s.lastReleaseRtUs = clock.TimeUnset
	s.resetRateEstimation()
}

// SetJoiningGraceUs overrides the joining grace period.
func (s *Scheduler) SetJoiningGraceUs(graceUs int64) { s.joiningGraceUs = graceUs }

// ApplyQuirks adjusts scheduling behavior for a known output device.
func (s *Scheduler) ApplyQuirks(q device.Quirks) {
	if q.NoFrameCoalescing {
		s.coalesce = NoCoalesce
	}
}

// Decide computes the release decision for one sample against one clock
// snapshot. Exactly one decision is returned per sample per tick.
func (s *Scheduler) Decide(sampleTimeUs, positionUs, elapsedRealtimeUs, streamStartUs int64, isLastSample bool) (Decision, ReleaseInfo) {
	if s.state == Idle || s.state == Stopped {
		return Ignore, ReleaseInfo{}
	}

	s.updateRateEstimation(sampleTimeUs)

	earlyUs := sampleTimeUs - positionUs
	releaseTimeNs := s.clk.NowNs() + earlyUs*1000
	info := ReleaseInfo{EarlyUs: earlyUs, ReleaseTimeNs: releaseTimeNs}

	// A stale picture beats exact timing: if the frame is late but nothing
	// has been released for too long, render it anyway.
	if earlyUs < lateThresholdUs && s.shouldForceRender(elapsedRealtimeUs) {
		return RenderImmediately, info
	}

	if earlyUs < veryLateThresholdUs && !isLastSample {
		return Drop, info
	}
	if earlyUs < lateThresholdUs && !isLastSample {
		return Drop, info
	}

	if s.inGracePeriod(positionUs, streamStartUs) {
		s.promoteAfterGrace(elapsedRealtimeUs)
		return RenderImmediately, info
	}
	s.promoteAfterGrace(elapsedRealtimeUs)

	if earlyUs <= scheduleWindowUs {
		if !s.timedRelease {
			// No timed release downstream: degrade to rendering near the
			// deadline ourselves.
			if earlyUs <= immediateWindowUs {
				return RenderImmediately, info
			}
			return TryAgainLater, info
		}
		if s.lastReleaseNs != clock.TimeUnset &&
			s.coalesce(releaseTimeNs, s.lastReleaseNs, s.minReleaseSeparationNs()) {
			logrus.WithFields(logrus.Fields{
				"releaseTimeNs": releaseTimeNs,
				"lastReleaseNs": s.lastReleaseNs,
			}).Debug("coalescing frame with identical release time")
			return Skip, info
		}
		if s.lastScheduledNs != clock.TimeUnset && releaseTimeNs < s.lastScheduledNs {
			// Release times handed to the device never go backwards.
			releaseTimeNs = s.lastScheduledNs
			info.ReleaseTimeNs = releaseTimeNs
		}
		s.lastScheduledNs = releaseTimeNs
		return Schedule, info
	}

	return TryAgainLater, info
}

// ShouldDropToKeyframe reports whether lateness is severe enough to drop all
// buffers up to the next keyframe instead of just the current one.
func (s *Scheduler) ShouldDropToKeyframe(earlyUs int64, isLastSample bool) bool {
	return earlyUs < veryLateThresholdUs && !isLastSample
}

// OnFrameReleased records an actual release so force-render and coalescing
// see the real output cadence.
func (s *Scheduler) OnFrameReleased(releaseTimeNs, elapsedRealtimeUs int64) {
	s.firstFrameDone = true
	s.lastReleaseNs = releaseTimeNs
	s.lastReleaseRtUs = elapsedRealtimeUs
}

// FrameDurationUs returns the estimated content frame duration, or 0 when
// unknown.
func (s *Scheduler) FrameDurationUs() int64 {
	return int64(s.avgFrameDeltaUs)
}

// inGracePeriod reports whether exact timing is waived. The grace ends as
// soon as one frame has actually been released: joining must never block
// first-frame display, but once a picture is up, normal scheduling applies
// even if the join deadline has not passed yet.
func (s *Scheduler) inGracePeriod(positionUs, streamStartUs int64) bool {
	if !s.firstFrameDone {
		return true
	}
	// Samples from before the stream start position that survived a
	// transition also release immediately.
	return s.state == Joining && positionUs < streamStartUs
}

func (s *Scheduler) promoteAfterGrace(elapsedRealtimeUs int64) {
	if s.state == Joining && elapsedRealtimeUs > s.joinDeadlineUs {
		s.state = Started
	}
}

func (s *Scheduler) shouldForceRender(elapsedRealtimeUs int64) bool {
	return s.lastReleaseRtUs != clock.TimeUnset &&
		elapsedRealtimeUs-s.lastReleaseRtUs > forceRenderElapsedUs
}

func (s *Scheduler) updateRateEstimation(sampleTimeUs int64) {
	if s.lastSampleTimeUs != clock.TimeUnset {
		delta := sampleTimeUs - s.lastSampleTimeUs
		if delta > 0 {
			if s.avgFrameDeltaUs == 0 {
				s.avgFrameDeltaUs = float64(delta)
			} else {
				s.avgFrameDeltaUs += 0.1 * (float64(delta) - s.avgFrameDeltaUs)
			}
		}
	}
	s.lastSampleTimeUs = sampleTimeUs
}

func (s *Scheduler) resetRateEstimation() {
	s.lastSampleTimeUs = clock.TimeUnset
	s.avgFrameDeltaUs = 0
}

func (s *Scheduler) minReleaseSeparationNs() int64 {
	if s.avgFrameDeltaUs == 0 {
		return defaultMinReleaseSeparationNs
	}
	sep := int64(s.avgFrameDeltaUs) * 1000 / 2
	if sep > maxReleaseSeparationNs {
		sep = maxReleaseSeparationNs
	}
	if sep <= 0 {
		sep = defaultMinReleaseSeparationNs
	}
	return sep
}
