// ABOUTME: MP3 file decoder adapter producing timestamped PCM samples
// ABOUTME: Wraps go-mp3, which always emits 16-bit stereo at the source rate
package source

import (
	"fmt"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/playsync/playsync-go/internal/pipeline"
	"github.com/playsync/playsync-go/internal/renderer"
)

// mp3ChunkUs is the duration of one decoded sample handed to the renderer.
const mp3ChunkUs = 20_000

// MP3 decodes an MP3 file into the decoder sample contract.
type MP3 struct {
	file    *os.File
	dec     *gomp3.Decoder
	format  pipeline.Format
	ptsUs   int64
	pending []byte
	ended   bool
}

// OpenMP3 opens path for decoding.
func OpenMP3(path string) (*MP3, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open mp3: %w", err)
	}
	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: decode mp3: %w", err)
	}
	return &MP3{
		file: f,
		dec:  dec,
		format: pipeline.Format{
			SampleRate: dec.SampleRate(),
			Channels:   2,
			Encoding:   pipeline.EncodingPCM16,
		},
	}, nil
}

// Format returns the PCM shape this decoder produces.
func (m *MP3) Format() pipeline.Format { return m.format }

// ReadSample decodes the next chunk of audio.
func (m *MP3) ReadSample() (renderer.Sample, renderer.ReadResult) {
	if m.ended {
		return renderer.Sample{}, renderer.EndOfStream
	}

	chunkBytes := int(m.format.DurationToFrames(mp3ChunkUs)) * m.format.BytesPerFrame()
	for len(m.pending) < chunkBytes {
		buf := make([]byte, chunkBytes)
		n, err := m.dec.Read(buf)
		if n > 0 {
			m.pending = append(m.pending, buf[:n]...)
		}
		if err != nil {
			// EOF or a truncated file: either way, play what was decoded.
			m.ended = true
			return m.flushTail()
		}
	}

	payload := m.pending[:chunkBytes]
	m.pending = m.pending[chunkBytes:]
	return m.emit(payload, 0)
}

// flushTail emits whatever is buffered, flagged as the last sample.
func (m *MP3) flushTail() (renderer.Sample, renderer.ReadResult) {
	if len(m.pending) == 0 {
		return renderer.Sample{Flags: renderer.FlagEndOfStream}, renderer.SampleRead
	}
	payload := m.pending
	m.pending = nil
	return m.emit(payload, renderer.FlagLastSample)
}

func (m *MP3) emit(payload []byte, extra renderer.SampleFlags) (renderer.Sample, renderer.ReadResult) {
	s := renderer.Sample{
		Payload:            payload,
		PresentationTimeUs: m.ptsUs,
		Flags:              renderer.FlagKeyframe | extra,
	}
	frames := int64(len(payload) / m.format.BytesPerFrame())
	m.ptsUs += m.format.FramesToDurationUs(frames)
	return s, renderer.SampleRead
}

// Close releases the underlying file.
func (m *MP3) Close() error {
	return m.file.Close()
}
