// ABOUTME: Linear-interpolation sample rate converter stage
// ABOUTME: Converts interleaved 16-bit PCM between sample rates
package pipeline

import "encoding/binary"

// Resampler converts PCM to a target sample rate using linear interpolation.
// Inactive when input already matches the target.
type Resampler struct {
	targetRate int
	channels   int
	ratio      float64
	position   float64
	active     bool
	pending    []int16
	out        []byte
	drained    bool
}

// NewResampler creates a resampler targeting targetRate Hz.
func NewResampler(targetRate int) *Resampler {
	return &Resampler{targetRate: targetRate}
}

func (r *Resampler) Plan(in Format) (Format, error) {
	if r.targetRate == 0 || in.SampleRate == r.targetRate {
		return in, nil
	}
	out := in
	out.SampleRate = r.targetRate
	return out, nil
}

func (r *Resampler) Configure(in Format) (Format, error) {
	out, err := r.Plan(in)
	if err != nil {
		return Format{}, err
	}
	r.channels = in.Channels
	r.active = out.SampleRate != in.SampleRate
	if r.active {
		r.ratio = float64(in.SampleRate) / float64(r.targetRate)
		r.position = 0
	}
	return out, nil
}

func (r *Resampler) Active() bool { return r.active }

func (r *Resampler) Queue(p []byte) {
	r.pending = append(r.pending, bytesToSamples(p)...)
	r.process(false)
}

func (r *Resampler) Output() []byte {
	out := r.out
	r.out = nil
	return out
}

func (r *Resampler) Drain() {
	r.process(true)
	r.drained = true
}

func (r *Resampler) Drained() bool { return r.drained }

func (r *Resampler) Reset() {
	r.pending = r.pending[:0]
	r.out = nil
	r.position = 0
	r.drained = false
}

func (r *Resampler) process(last bool) {
	inFrames := len(r.pending) / r.channels
	if inFrames < 2 && !last {
		// Interpolation needs a lookahead frame; hold the tail.
		return
	}

	var out []int16
	for {
		idx := int(r.position)
		if idx >= inFrames-1 {
			break
		}
		frac := r.position - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			a := float64(r.pending[idx*r.channels+ch])
			b := float64(r.pending[(idx+1)*r.channels+ch])
			out = append(out, int16(a*(1-frac)+b*frac))
		}
		r.position += r.ratio
	}

	// Keep the unconsumed tail for the next chunk.
	consumed := int(r.position)
	if consumed > inFrames {
		consumed = inFrames
	}
	r.pending = append(r.pending[:0], r.pending[consumed*r.channels:]...)
	r.position -= float64(consumed)

	r.out = append(r.out, samplesToBytes(out)...)
}

func bytesToSamples(p []byte) []int16 {
	samples := make([]int16, len(p)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(p[i*2:]))
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	p := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
	}
	return p
}
