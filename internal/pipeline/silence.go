// ABOUTME: Silence trimming stage for the PCM chain
// ABOUTME: Skips sustained quiet passages and counts the frames it removed
package pipeline

// Silence trimming thresholds. A passage only starts being skipped once it
// has been quiet for minSilenceDurationUs; paddingFrames of the quiet lead-in
// are kept so speech onsets are not clipped.
const (
	silenceAmplitudeThreshold = 1024
	minSilenceDurationUs      = 150_000
)

// SilenceTrimmer removes sustained silent frames from the stream. The sink
// adds the skipped duration back when mapping device position to media time.
type SilenceTrimmer struct {
	enabled  bool
	channels int
	rate     int
	active   bool

	minSilentFrames int64
	paddingFrames   int64

	silentRun     []int16 // buffered quiet frames not yet classified
	skippedFrames int64
	out           []byte
	drained       bool
}

// NewSilenceTrimmer creates a trimmer; disabled by default.
func NewSilenceTrimmer() *SilenceTrimmer {
	return &SilenceTrimmer{}
}

// SetEnabled toggles silence skipping. Takes effect at the next Configure.
func (t *SilenceTrimmer) SetEnabled(enabled bool) { t.enabled = enabled }

// Enabled returns the configured toggle.
func (t *SilenceTrimmer) Enabled() bool { return t.enabled }

// SkippedFrames returns the total frames removed since the last Reset.
func (t *SilenceTrimmer) SkippedFrames() int64 { return t.skippedFrames }

func (t *SilenceTrimmer) Plan(in Format) (Format, error) { return in, nil }

func (t *SilenceTrimmer) Configure(in Format) (Format, error) {
	t.channels = in.Channels
	t.rate = in.SampleRate
	t.active = t.enabled
	t.minSilentFrames = in.DurationToFrames(minSilenceDurationUs)
	t.paddingFrames = in.DurationToFrames(20_000)
	return in, nil
}

func (t *SilenceTrimmer) Active() bool { return t.active }

func (t *SilenceTrimmer) Queue(p []byte) {
	in := bytesToSamples(p)
	frames := len(in) / t.channels
	for f := 0; f < frames; f++ {
		frame := in[f*t.channels : (f+1)*t.channels]
		if frameIsSilent(frame) {
			t.silentRun = append(t.silentRun, frame...)
			continue
		}
		t.flushSilentRun()
		t.out = append(t.out, samplesToBytes(frame)...)
	}
	// A run longer than the classification threshold is silence for sure;
	// emit only the padding and drop the rest now so memory stays bounded.
	t.trimLongRun()
}

func (t *SilenceTrimmer) Output() []byte {
	out := t.out
	t.out = nil
	return out
}

func (t *SilenceTrimmer) Drain() {
	// Trailing quiet audio at end of stream plays out; only interior
	// silence is skipped.
	t.flushSilentRun()
	t.drained = true
}

func (t *SilenceTrimmer) Drained() bool { return t.drained }

func (t *SilenceTrimmer) Reset() {
	t.silentRun = t.silentRun[:0]
	t.out = nil
	t.skippedFrames = 0
	t.drained = false
}

// flushSilentRun classifies the buffered quiet run now that loud audio (or
// end of stream) follows it: short runs play, long runs are skipped except
// for padding on both sides.
func (t *SilenceTrimmer) flushSilentRun() {
	runFrames := int64(len(t.silentRun) / t.channels)
	if runFrames == 0 {
		return
	}
	if runFrames < t.minSilentFrames {
		t.out = append(t.out, samplesToBytes(t.silentRun)...)
	} else {
		keep := t.paddingFrames
		if keep*2 > runFrames {
			keep = runFrames / 2
		}
		head := t.silentRun[:keep*int64(t.channels)]
		tail := t.silentRun[(runFrames-keep)*int64(t.channels):]
		t.out = append(t.out, samplesToBytes(head)...)
		t.out = append(t.out, samplesToBytes(tail)...)
		t.skippedFrames += runFrames - 2*keep
	}
	t.silentRun = t.silentRun[:0]
}

// trimLongRun bounds the buffered run: once it exceeds the classification
// threshold plus padding, the middle can be discarded incrementally.
func (t *SilenceTrimmer) trimLongRun() {
	runFrames := int64(len(t.silentRun) / t.channels)
	limit := t.minSilentFrames + 2*t.paddingFrames
	if runFrames <= limit {
		return
	}
	drop := runFrames - limit
	// Remove frames from the middle, preserving head padding already
	// buffered and the tail that may precede upcoming loud audio.
	start := t.paddingFrames * int64(t.channels)
	end := start + drop*int64(t.channels)
	t.silentRun = append(t.silentRun[:start], t.silentRun[end:]...)
	t.skippedFrames += drop
}

func frameIsSilent(frame []int16) bool {
	for _, s := range frame {
		if s > silenceAmplitudeThreshold || s < -silenceAmplitudeThreshold {
			return false
		}
	}
	return true
}
