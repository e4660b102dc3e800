// ABOUTME: Playback speed adjustment stage
// ABOUTME: Time-stretches PCM by resampling and reports media/playout scaling
package pipeline

// SpeedAdjuster changes playout duration by resampling frames at the speed
// ratio. Pitch correction is out of scope; speed maps directly to the frame
// ratio. Inactive at speed 1.0.
type SpeedAdjuster struct {
	speed    float64
	channels int
	position float64
	active   bool
	pending  []int16
	out      []byte
	drained  bool
}

// NewSpeedAdjuster creates an adjuster at the default speed.
func NewSpeedAdjuster() *SpeedAdjuster {
	return &SpeedAdjuster{speed: 1.0}
}

// SetSpeed sets the playback speed factor. Takes effect at the next
// Configure; the sink drains the chain first so the change lands on a
// checkpoint boundary.
func (s *SpeedAdjuster) SetSpeed(speed float64) {
	if speed > 0 {
		s.speed = speed
	}
}

// Speed returns the configured speed factor.
func (s *SpeedAdjuster) Speed() float64 { return s.speed }

// MediaDurationUs converts an output playout duration to the media duration
// it represents at the configured speed.
func (s *SpeedAdjuster) MediaDurationUs(playoutUs int64) int64 {
	if !s.active {
		return playoutUs
	}
	return int64(float64(playoutUs) * s.speed)
}

func (s *SpeedAdjuster) Plan(in Format) (Format, error) { return in, nil }

func (s *SpeedAdjuster) Configure(in Format) (Format, error) {
	s.channels = in.Channels
	s.active = s.speed != 1.0
	s.position = 0
	return in, nil
}

func (s *SpeedAdjuster) Active() bool { return s.active }

func (s *SpeedAdjuster) Queue(p []byte) {
	s.pending = append(s.pending, bytesToSamples(p)...)
	s.process(false)
}

func (s *SpeedAdjuster) Output() []byte {
	out := s.out
	s.out = nil
	return out
}

func (s *SpeedAdjuster) Drain() {
	s.process(true)
	s.drained = true
}

func (s *SpeedAdjuster) Drained() bool { return s.drained }

func (s *SpeedAdjuster) Reset() {
	s.pending = s.pending[:0]
	s.out = nil
	s.position = 0
	s.drained = false
}

func (s *SpeedAdjuster) process(last bool) {
	inFrames := len(s.pending) / s.channels
	if inFrames < 2 && !last {
		return
	}

	var out []int16
	for {
		idx := int(s.position)
		if idx >= inFrames-1 {
			break
		}
		frac := s.position - float64(idx)
		for ch := 0; ch < s.channels; ch++ {
			a := float64(s.pending[idx*s.channels+ch])
			b := float64(s.pending[(idx+1)*s.channels+ch])
			out = append(out, int16(a*(1-frac)+b*frac))
		}
		s.position += s.speed
	}

	consumed := int(s.position)
	if consumed > inFrames {
		consumed = inFrames
	}
	s.pending = append(s.pending[:0], s.pending[consumed*s.channels:]...)
	s.position -= float64(consumed)

	s.out = append(s.out, samplesToBytes(out)...)
}
