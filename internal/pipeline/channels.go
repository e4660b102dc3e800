// ABOUTME: Channel count conversion stage for the PCM chain
// ABOUTME: Upmixes mono to stereo and downmixes stereo to mono
package pipeline

import "fmt"

// ChannelMapper converts between mono and stereo interleaved PCM. Inactive
// when input already matches the target channel count.
type ChannelMapper struct {
	targetChannels int
	inChannels     int
	active         bool
	out            []byte
	drained        bool
}

// NewChannelMapper creates a mapper targeting targetChannels. Zero means
// passthrough.
func NewChannelMapper(targetChannels int) *ChannelMapper {
	return &ChannelMapper{targetChannels: targetChannels}
}

func (m *ChannelMapper) Plan(in Format) (Format, error) {
	if m.targetChannels == 0 || in.Channels == m.targetChannels {
		return in, nil
	}
	if in.Channels > 2 || m.targetChannels > 2 {
		return Format{}, fmt.Errorf("pipeline: unsupported channel mapping %d -> %d", in.Channels, m.targetChannels)
	}
	out := in
	out.Channels = m.targetChannels
	return out, nil
}

func (m *ChannelMapper) Configure(in Format) (Format, error) {
	out, err := m.Plan(in)
	if err != nil {
		return Format{}, err
	}
	m.inChannels = in.Channels
	m.active = out.Channels != in.Channels
	return out, nil
}

func (m *ChannelMapper) Active() bool { return m.active }

func (m *ChannelMapper) Queue(p []byte) {
	in := bytesToSamples(p)
	var out []int16
	if m.inChannels == 1 && m.targetChannels == 2 {
		out = make([]int16, 0, len(in)*2)
		for _, s := range in {
			out = append(out, s, s)
		}
	} else {
		out = make([]int16, 0, len(in)/2)
		for i := 0; i+1 < len(in); i += 2 {
			out = append(out, int16((int32(in[i])+int32(in[i+1]))/2))
		}
	}
	m.out = append(m.out, samplesToBytes(out)...)
}

func (m *ChannelMapper) Output() []byte {
	out := m.out
	m.out = nil
	return out
}

func (m *ChannelMapper) Drain() { m.drained = true }

func (m *ChannelMapper) Drained() bool { return m.drained }

func (m *ChannelMapper) Reset() {
	m.out = nil
	m.drained = false
}
