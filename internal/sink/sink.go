// ABOUTME: Audio output pipeline with non-blocking writes and drift correction
// ABOUTME: Owns the processing chain, device lifecycle and position mapping
package sink

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/playsync/playsync-go/internal/clock"
	"github.com/playsync/playsync-go/internal/device"
	"github.com/playsync/playsync-go/internal/events"
	"github.com/playsync/playsync-go/internal/pipeline"
	"github.com/playsync/playsync-go/internal/timing"
)

const (
	// Device init failures retry with this buffer size before giving up.
	smallerBufferRetrySize = 1_000_000

	// A gap between expected and actual presentation time beyond this
	// triggers a start-time re-sync and a drift-correction checkpoint.
	discontinuityThresholdUs = 200_000

	// Skipped silence is reported only once it accumulates past this.
	minReportSilenceUs = 300_000
)

// OutputFactory opens an output device for a configuration. The sink owns
// the returned device until Flush releases it.
type OutputFactory func(cfg Configuration) (device.Output, error)

// Options configures a Sink.
type Options struct {
	Factory OutputFactory
	Clock   clock.Clock
	Events  *events.Queue
	Quirks  device.Quirks

	// PreferOffload requests the low-power path for compressed input when
	// the device supports it.
	PreferOffload bool

	// TargetSampleRate and TargetChannels pin the output shape; zero keeps
	// the input shape.
	TargetSampleRate int
	TargetChannels   int

	// BufferSizeBytes overrides the default device buffer size.
	BufferSizeBytes int

	// StrictTimestamps enables the debug-only mode where spurious device
	// readings fail instead of being dropped.
	StrictTimestamps bool
}

// Sink is the audio output pipeline. All methods are called from the
// playback thread; only the async release worker runs elsewhere.
type Sink struct {
	factory       OutputFactory
	clk           clock.Clock
	events        *events.Queue
	quirks        device.Quirks
	preferOffload bool
	strict        bool
	bufferSize    int

	chain   *pipeline.Chain
	speedSt *pipeline.SpeedAdjuster
	trimmer *pipeline.SilenceTrimmer

	cfg        Configuration
	configured bool
	pendingCfg *Configuration

	out     device.Output
	tracker *timing.PositionTracker

	offloadState OffloadState
	params       PlaybackParameters
	afterDrain   *PlaybackParameters
	skipSilence  bool

	checkpoints *checkpointQueue

	playing          bool
	startMediaTimeUs int64
	startNeedsInit   bool
	startNeedsSync   bool

	submittedFrames      int64 // input frames fed to the chain
	writtenBytes         int64 // output bytes accepted by the device
	writtenEncodedFrames int64
	framesPerAccessUnit  int64

	inputHeld       bool
	heldInputTimeUs int64
	remainder       []byte
	handledEOS      bool
	chainDraining   bool

	silenceReportedFrames int64
	accumulatedSilenceUs  int64
	underrunLatched       bool
	offloadFullLatched    bool

	writeErrHolder *pendingErrorHolder
	initErrHolder  *pendingErrorHolder

	releasesInFlight atomic.Int32
}

// New creates a sink. The factory is required; everything else has working
// defaults.
func New(opts Options) *Sink {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewStandalone()
	}
	ev := opts.Events
	if ev == nil {
		ev = events.NewQueue()
	}
	nowMs := func() int64 { return clk.ElapsedRealtimeUs() / 1000 }

	speedSt := pipeline.NewSpeedAdjuster()
	trimmer := pipeline.NewSilenceTrimmer()
	chain := pipeline.NewChain(
		pipeline.NewChannelMapper(opts.TargetChannels),
		pipeline.NewResampler(opts.TargetSampleRate),
		speedSt,
		trimmer,
	)

	return &Sink{
		factory:        opts.Factory,
		clk:            clk,
		events:         ev,
		quirks:         opts.Quirks,
		preferOffload:  opts.PreferOffload,
		strict:         opts.StrictTimestamps,
		bufferSize:     opts.BufferSizeBytes,
		chain:          chain,
		speedSt:        speedSt,
		trimmer:        trimmer,
		params:         DefaultPlaybackParameters,
		checkpoints:    newCheckpointQueue(),
		startNeedsInit: true,
		writeErrHolder: newPendingErrorHolder(retryWindowMs, nowMs),
		initErrHolder:  newPendingErrorHolder(retryWindowMs, nowMs),
	}
}

// Configure prepares the sink for an input format. With a device already
// live, the new configuration becomes pending and swaps in once the active
// pipeline drains — immediately if the output shape is reusable.
func (s *Sink) Configure(format pipeline.Format) error {
	if !format.Valid() {
		return &ConfigurationError{Format: format, Reason: "unspecified format"}
	}

	// A fresh configuration may retry offload even after a broken attempt.
	if s.offloadState == OffloadDisabledUntilReconfigure {
		s.offloadState = OffloadDisabled
	}

	var cfg Configuration
	switch {
	case format.Encoding.IsPCM():
		// With a device live the chain is still streaming the old format;
		// only plan the new shape here. The real reconfigure happens after
		// the drain.
		outFormat, err := s.planChainOutput(format)
		if err != nil {
			return &ConfigurationError{Format: format, Reason: err.Error()}
		}
		cfg = Configuration{
			InputFormat:  format,
			OutputFormat: outFormat,
			Mode:         ModePCM,
			BufferSize:   s.bufferSizeFor(outFormat),
		}
		s.offloadState = OffloadDisabled
	case s.preferOffload && !s.quirks.OffloadBroken:
		cfg = Configuration{
			InputFormat:  format,
			OutputFormat: format,
			Mode:         ModeOffload,
			BufferSize:   s.bufferSizeFor(format),
		}
		s.offloadState = OffloadEnabled
	default:
		cfg = Configuration{
			InputFormat:  format,
			OutputFormat: format,
			Mode:         ModePassthrough,
			BufferSize:   s.bufferSizeFor(format),
		}
		s.offloadState = OffloadDisabled
	}

	if !format.Encoding.IsPCM() {
		s.framesPerAccessUnit = framesPerAccessUnit(format.Encoding)
		if s.framesPerAccessUnit == 0 {
			return &ConfigurationError{Format: format, Reason: "unknown access unit size"}
		}
	}

	logrus.WithFields(logrus.Fields{
		"input":  format.String(),
		"output": cfg.OutputFormat.String(),
		"mode":   cfg.Mode.String(),
	}).Info("sink configured")

	if s.out != nil {
		s.pendingCfg = &cfg
	} else {
		s.cfg = cfg
	}
	s.configured = true
	return nil
}

// planChainOutput computes the chain's output shape for an input. The chain
// itself is configured only between streams or after a drain.
func (s *Sink) planChainOutput(format pipeline.Format) (pipeline.Format, error) {
	if s.out != nil {
		return s.chain.Plan(format)
	}
	return s.chain.Configure(format)
}

// HandleBuffer offers one sample's bytes to the pipeline. It returns false
// under backpressure; the caller must re-offer the same unmodified sample
// next tick. Each sample is consumed at most once.
func (s *Sink) HandleBuffer(p []byte, presentationTimeUs int64) (bool, error) {
	if !s.configured {
		return false, errors.New("sink: not configured")
	}
	if s.inputHeld && presentationTimeUs != s.heldInputTimeUs {
		return false, fmt.Errorf("sink: new sample %dus offered while %dus still held",
			presentationTimeUs, s.heldInputTimeUs)
	}

	if s.pendingCfg != nil {
		done, err := s.drainForReconfigure(presentationTimeUs)
		if err != nil || !done {
			return false, err
		}
	}

	if s.out == nil {
		ready, err := s.initializeDevice()
		if err != nil || !ready {
			return false, err
		}
	}
	s.initErrHolder.clear()

	if s.startNeedsInit {
		if presentationTimeUs < 0 {
			presentationTimeUs = 0
		}
		s.startMediaTimeUs = presentationTimeUs
		s.startNeedsInit = false
		s.startNeedsSync = false
		s.pushCheckpoint(presentationTimeUs)
		if s.playing {
			if err := s.out.Play(); err != nil {
				return false, err
			}
		}
	}

	if !s.inputHeld {
		accepted, err := s.admitSample(p, presentationTimeUs)
		if err != nil || !accepted {
			return false, err
		}
	}

	if err := s.writeRemainder(); err != nil {
		return false, err
	}

	if len(s.remainder) == 0 {
		s.inputHeld = false
		s.maybeReportSilence()
		return true, nil
	}

	if stalled, err := s.checkStall(); err != nil {
		return false, err
	} else if stalled {
		logrus.Warn("resetting stalled output device")
		s.Flush()
		return true, nil
	}

	return false, nil
}

// admitSample runs the discontinuity and deferred-parameter logic, then
// feeds the sample into the chain (PCM) or the remainder (compressed).
func (s *Sink) admitSample(p []byte, presentationTimeUs int64) (bool, error) {
	if s.afterDrain != nil {
		if !s.drainChainStep() {
			return false, nil
		}
		s.applyParamsAndSkipSilence(presentationTimeUs)
		s.afterDrain = nil
	}

	expectedUs := s.startMediaTimeUs + s.cfg.inputFramesToDurationUs(s.submittedFrames)
	gapUs := presentationTimeUs - expectedUs
	if !s.startNeedsSync && abs64(gapUs) > discontinuityThresholdUs {
		logrus.WithFields(logrus.Fields{
			"expectedUs": expectedUs,
			"actualUs":   presentationTimeUs,
		}).Warn("unexpected presentation time discontinuity")
		s.startNeedsSync = true
	}
	if s.startNeedsSync {
		if !s.drainChainStep() {
			return false, nil
		}
		adjustmentUs := presentationTimeUs - expectedUs
		s.startMediaTimeUs += adjustmentUs
		s.startNeedsSync = false
		s.pushCheckpoint(presentationTimeUs)
		if adjustmentUs != 0 {
			s.events.Post(events.PositionDiscontinuity{AdjustmentUs: adjustmentUs})
		}
	}

	if s.cfg.Mode == ModePCM {
		out := s.chain.Push(p)
		s.remainder = append(s.remainder, out...)
		s.submittedFrames += int64(len(p) / s.cfg.InputFormat.BytesPerFrame())
	} else {
		s.remainder = append(s.remainder, p...)
		s.submittedFrames += s.framesPerAccessUnit
	}
	s.inputHeld = true
	s.heldInputTimeUs = presentationTimeUs
	return true, nil
}

// writeRemainder pushes buffered output bytes to the device without
// blocking. A partial write is the backpressure signal; a failed write goes
// through the recoverable-error holder.
func (s *Sink) writeRemainder() error {
	if len(s.remainder) == 0 {
		return nil
	}
	offered := len(s.remainder)
	n, err := s.out.Write(s.remainder)
	if n > 0 {
		s.writtenBytes += int64(n)
		if s.cfg.Mode != ModePCM && n == offered {
			s.writtenEncodedFrames += s.framesPerAccessUnit
		}
		s.remainder = s.remainder[n:]
		s.underrunLatched = false
	}
	if err != nil {
		return s.classifyWriteError(err)
	}
	s.writeErrHolder.clear()

	if n == offered {
		s.offloadFullLatched = false
	} else if s.playing && s.offloadState == OffloadEnabled && !s.offloadFullLatched {
		// Canonical offload "buffer approaching empty" signal, posted once
		// per full-buffer episode rather than on every retry.
		s.offloadFullLatched = true
		s.events.Post(events.OffloadBufferFull{})
	}
	return nil
}

func (s *Sink) classifyWriteError(cause error) error {
	recoverable := s.writtenBytes > 0
	if s.offloadState == OffloadEnabled {
		// A provenly-broken offload attempt is not retried on this
		// configuration; the direct path takes over after reconfigure.
		s.offloadState = OffloadDisabledUntilReconfigure
		recoverable = true
	}
	werr := &WriteError{Recoverable: recoverable, Err: cause}
	if !werr.Recoverable {
		s.events.Post(events.SinkError{Err: werr})
		return werr
	}
	if held := s.writeErrHolder.hold(werr); held != nil {
		s.events.Post(events.SinkError{Err: held})
		return held
	}
	return nil
}

// initializeDevice opens the output device, retrying once with a smaller
// buffer. It refuses to create a device while a previous release is still in
// flight, which bounds concurrent handle usage.
func (s *Sink) initializeDevice() (bool, error) {
	if s.releasesInFlight.Load() > 0 {
		return false, nil
	}

	out, err := s.factory(s.cfg)
	if err != nil && s.cfg.BufferSize > smallerBufferRetrySize {
		retryCfg := s.cfg
		retryCfg.BufferSize = smallerBufferRetrySize
		var retryErr error
		if out, retryErr = s.factory(retryCfg); retryErr == nil {
			logrus.WithField("bufferSize", retryCfg.BufferSize).
				Warn("device opened with reduced buffer after init failure")
			s.cfg = retryCfg
			err = nil
		}
	}
	if err != nil {
		recoverable := false
		if s.offloadState == OffloadEnabled {
			s.offloadState = OffloadDisabledUntilReconfigure
			recoverable = true
		}
		ierr := &InitializationError{Recoverable: recoverable, Err: err}
		if !ierr.Recoverable {
			s.events.Post(events.SinkError{Err: ierr})
			return false, ierr
		}
		if held := s.initErrHolder.hold(ierr); held != nil {
			s.events.Post(events.SinkError{Err: held})
			return false, held
		}
		return false, nil
	}

	s.out = out
	s.tracker = timing.NewPositionTracker(out, s.cfg.OutputFormat.SampleRate, s.quirks, s.pendingFrames)
	s.tracker.SetStrict(s.strict)
	s.tracker.SetPlaying(s.playing, s.clk.NowUs())
	return true, nil
}

// drainForReconfigure completes the deferred configuration swap: reusable
// shapes swap mid-stream, anything else waits for the chain to drain and the
// device to finish playing queued data, then flushes.
func (s *Sink) drainForReconfigure(presentationTimeUs int64) (bool, error) {
	if !s.drainChainStep() {
		if err := s.writeRemainder(); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.writeRemainder(); err != nil {
		return false, err
	}
	if len(s.remainder) > 0 {
		return false, nil
	}

	if !s.pendingCfg.CanReuse(s.cfg) {
		if s.HasPendingData() {
			// Waiting for playout on the current device to finish so the
			// swap does not tear audible data down mid-buffer.
			return false, nil
		}
		cfg := *s.pendingCfg
		s.Flush()
		s.cfg = cfg
		s.pendingCfg = nil
	} else {
		s.cfg = *s.pendingCfg
		s.pendingCfg = nil
	}
	s.applyParamsAndSkipSilence(presentationTimeUs)
	return true, nil
}

// drainChainStep advances chain draining and reports completion. Only
// meaningful for PCM; compressed modes have no chain state.
func (s *Sink) drainChainStep() bool {
	if s.cfg.Mode != ModePCM {
		return true
	}
	if !s.chainDraining {
		s.chain.Drain()
		s.chainDraining = true
	}
	if out := s.chain.Pull(); len(out) > 0 {
		s.remainder = append(s.remainder, out...)
	}
	if s.chain.Drained() {
		s.chainDraining = false
		s.chain.Reset()
		if _, err := s.chain.Configure(s.cfg.InputFormat); err != nil {
			logrus.WithError(err).Error("chain reconfigure after drain failed")
		}
		return true
	}
	return false
}

// applyParamsAndSkipSilence applies deferred playback parameters and pushes
// the drift-correction checkpoint that records where the new mapping starts.
func (s *Sink) applyParamsAndSkipSilence(presentationTimeUs int64) {
	if s.afterDrain != nil {
		s.params = *s.afterDrain
	}
	if s.cfg.Mode == ModePCM {
		s.speedSt.SetSpeed(s.params.Speed)
		s.trimmer.SetEnabled(s.skipSilence)
		if _, err := s.chain.Configure(s.cfg.InputFormat); err != nil {
			logrus.WithError(err).Error("chain reconfigure failed")
		}
	}
	s.pushCheckpoint(presentationTimeUs)
}

func (s *Sink) pushCheckpoint(mediaTimeUs int64) {
	if mediaTimeUs < 0 {
		mediaTimeUs = 0
	}
	params := s.params
	if s.cfg.Mode != ModePCM {
		// Speed adjustment needs the processing chain; compressed paths
		// always play at recorded speed.
		params = DefaultPlaybackParameters
	}
	s.checkpoints.push(checkpoint{
		params:           params,
		mediaTimeUs:      mediaTimeUs,
		devicePositionUs: s.cfg.framesToDurationUs(s.writtenFrames()),
	})
}

// SetPlaybackParameters requests a new speed/pitch. With a live device the
// chain drains first so the change lands exactly on a checkpoint boundary.
func (s *Sink) SetPlaybackParameters(params PlaybackParameters) {
	if params.Speed <= 0 {
		params.Speed = 1.0
	}
	if params.Pitch <= 0 {
		params.Pitch = 1.0
	}
	if s.out != nil {
		p := params
		s.afterDrain = &p
	} else {
		s.params = params
		s.speedSt.SetSpeed(params.Speed)
	}
}

// PlaybackParameters returns the active (or most recently requested) pair.
func (s *Sink) PlaybackParameters() PlaybackParameters {
	if s.afterDrain != nil {
		return *s.afterDrain
	}
	return s.params
}

// SetSkipSilence toggles silence trimming, deferred the same way as
// playback parameters.
func (s *Sink) SetSkipSilence(enabled bool) {
	if s.skipSilence == enabled {
		return
	}
	s.skipSilence = enabled
	if s.out != nil {
		p := s.params
		s.afterDrain = &p
	} else {
		s.trimmer.SetEnabled(enabled)
	}
}

// PositionUs maps the tracked device position to media time through the
// checkpoint queue. Returns clock.TimeUnset before any data has flowed.
func (s *Sink) PositionUs(sourceEnded bool) (int64, error) {
	if s.out == nil || s.startNeedsInit || s.tracker == nil {
		return clock.TimeUnset, nil
	}
	sample, err := s.tracker.Advance(s.clk.NowUs())
	if err != nil {
		return clock.TimeUnset, err
	}
	devicePosUs := sample.PositionUs
	if writtenUs := s.cfg.framesToDurationUs(s.writtenFrames()); sourceEnded && devicePosUs > writtenUs {
		devicePosUs = writtenUs
	}
	s.maybeDetectUnderrun(devicePosUs)
	return s.applySkipping(s.checkpoints.apply(devicePosUs)), nil
}

// applySkipping adds back the duration removed by the silence trimmer so
// media time keeps advancing across skipped passages.
func (s *Sink) applySkipping(positionUs int64) int64 {
	skipped := s.trimmer.SkippedFrames()
	adjusted := positionUs + s.cfg.framesToDurationUs(skipped)
	if skipped > s.silenceReportedFrames {
		s.accumulatedSilenceUs += s.cfg.framesToDurationUs(skipped - s.silenceReportedFrames)
		s.silenceReportedFrames = skipped
	}
	return adjusted
}

func (s *Sink) maybeReportSilence() {
	if s.accumulatedSilenceUs >= minReportSilenceUs {
		s.events.Post(events.SilenceSkipped{DurationUs: s.accumulatedSilenceUs})
		s.accumulatedSilenceUs = 0
	}
}

func (s *Sink) maybeDetectUnderrun(devicePosUs int64) {
	if !s.playing || s.handledEOS || s.writtenBytes == 0 {
		return
	}
	writtenUs := s.cfg.framesToDurationUs(s.writtenFrames())
	if devicePosUs >= writtenUs && !s.underrunLatched {
		s.underrunLatched = true
		s.events.Post(events.Underrun{
			BufferSize:       s.cfg.BufferSize,
			BufferDurationUs: s.cfg.framesToDurationUs(int64(s.cfg.BufferSize / s.cfg.OutputFormat.BytesPerFrame())),
		})
	}
}

func (s *Sink) checkStall() (bool, error) {
	// A paused device makes no progress; only playing output can stall.
	if !s.playing || s.tracker == nil {
		return false, nil
	}
	sample, err := s.tracker.Advance(s.clk.NowUs())
	if err != nil {
		return false, err
	}
	return sample.Stalled, nil
}

// DrainToEndOfStream flushes the chain and writes everything buffered.
// Returns true once all processed data has been accepted by the device.
func (s *Sink) DrainToEndOfStream() (bool, error) {
	if !s.drainChainStep() {
		if err := s.writeRemainder(); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.writeRemainder(); err != nil {
		return false, err
	}
	return len(s.remainder) == 0, nil
}

// PlayToEndOfStream drains and marks end of stream once everything reached
// the device.
func (s *Sink) PlayToEndOfStream() error {
	if s.handledEOS || s.out == nil {
		return nil
	}
	done, err := s.DrainToEndOfStream()
	if err != nil {
		return err
	}
	if done {
		s.handledEOS = true
	}
	return nil
}

// HasPendingData reports whether the device still has queued audio to play.
func (s *Sink) HasPendingData() bool {
	return s.out != nil && s.out.PositionFrames() < s.writtenFrames()
}

// IsEnded reports whether end of stream was handled and played out.
func (s *Sink) IsEnded() bool {
	return s.out == nil || (s.handledEOS && !s.HasPendingData())
}

// Play starts or resumes playout.
func (s *Sink) Play() {
	s.playing = true
	if s.tracker != nil {
		s.tracker.SetPlaying(true, s.clk.NowUs())
	}
	if s.out != nil && !s.startNeedsInit {
		if err := s.out.Play(); err != nil {
			logrus.WithError(err).Warn("device play failed")
		}
	}
}

// Pause suspends playout, keeping queued data.
func (s *Sink) Pause() {
	s.playing = false
	if s.tracker != nil {
		s.tracker.SetPlaying(false, s.clk.NowUs())
	}
	if s.out != nil {
		if err := s.out.Pause(); err != nil {
			logrus.WithError(err).Warn("device pause failed")
		}
	}
}

// Flush discards queued audio and releases the device asynchronously. A new
// device is not created until the release completes.
func (s *Sink) Flush() {
	if s.out != nil {
		out := s.out
		s.out = nil
		s.releasesInFlight.Add(1)
		releaseDeviceAsync(out, func() {
			s.releasesInFlight.Add(-1)
		})
	}
	if s.tracker != nil {
		s.tracker.Reset()
	}
	s.tracker = nil

	s.submittedFrames = 0
	s.writtenBytes = 0
	s.writtenEncodedFrames = 0
	s.remainder = nil
	s.inputHeld = false
	s.chainDraining = false
	s.handledEOS = false
	s.startMediaTimeUs = 0
	s.startNeedsInit = true
	s.startNeedsSync = false
	s.underrunLatched = false
	s.offloadFullLatched = false
	s.silenceReportedFrames = 0
	s.accumulatedSilenceUs = 0
	s.checkpoints.reset(s.params)
	if s.pendingCfg != nil {
		s.cfg = *s.pendingCfg
		s.pendingCfg = nil
	}
	if s.configured && s.cfg.Mode == ModePCM {
		// Queued audio is gone; buffered chain state goes with it.
		s.chain.Reset()
		if _, err := s.chain.Configure(s.cfg.InputFormat); err != nil {
			logrus.WithError(err).Error("chain reconfigure after flush failed")
		}
	}
	s.writeErrHolder.clear()
	s.initErrHolder.clear()
}

// Reset flushes and returns the sink to its pre-configure state.
func (s *Sink) Reset() {
	s.Flush()
	s.chain.Reset()
	s.playing = false
	s.afterDrain = nil
	if s.offloadState == OffloadDisabledUntilReconfigure {
		s.offloadState = OffloadDisabled
	}
}

// OffloadState exposes the offload availability state.
func (s *Sink) OffloadState() OffloadState { return s.offloadState }

func (s *Sink) bufferSizeFor(f pipeline.Format) int {
	if s.bufferSize > 0 {
		return s.bufferSize
	}
	return defaultBufferSize(f)
}

// writtenFrames returns frames accepted by the device in output terms.
func (s *Sink) writtenFrames() int64 {
	if s.cfg.Mode == ModePCM {
		return s.writtenBytes / int64(s.cfg.OutputFormat.BytesPerFrame())
	}
	return s.writtenEncodedFrames
}

// pendingFrames feeds the position tracker's stall detector.
func (s *Sink) pendingFrames() int64 {
	if s.out == nil {
		return 0
	}
	return s.writtenFrames() - s.out.PositionFrames()
}

// framesPerAccessUnit returns the fixed frame count per compressed access
// unit for supported encodings.
func framesPerAccessUnit(e pipeline.Encoding) int64 {
	switch e {
	case pipeline.EncodingAC3, pipeline.EncodingEAC3:
		return 1536
	default:
		return 0
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
