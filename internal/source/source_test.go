// ABOUTME: Tests for the file and synthetic decoders
// ABOUTME: Exercises tail flushing and end-of-stream without real media files
package source

import (
	"testing"

	"github.com/playsync/playsync-go/internal/pipeline"
	"github.com/playsync/playsync-go/internal/renderer"
)

func TestMP3TailFlushedOnDecodeError(t *testing.T) {
	// A decode error leaves a partial chunk buffered; it must come out as
	// one last sample, then end of stream.
	m := &MP3{
		format: pipeline.Format{
			SampleRate: 44100,
			Channels:   2,
			Encoding:   pipeline.EncodingPCM16,
		},
		pending: make([]byte, 400),
	}
	m.ended = true

	s, res := m.flushTail()
	if res != renderer.SampleRead {
		t.Fatalf("tail read result %v, want SampleRead", res)
	}
	if len(s.Payload) != 400 {
		t.Errorf("tail payload %d bytes, want 400", len(s.Payload))
	}
	if s.Flags&renderer.FlagLastSample == 0 {
		t.Error("tail sample missing last-sample flag")
	}

	if _, res := m.ReadSample(); res != renderer.EndOfStream {
		t.Errorf("read after tail returned %v, want EndOfStream", res)
	}
}

func TestMP3EmptyTailEndsStream(t *testing.T) {
	m := &MP3{format: pipeline.Format{SampleRate: 44100, Channels: 2, Encoding: pipeline.EncodingPCM16}}
	m.ended = true

	s, res := m.flushTail()
	if res != renderer.SampleRead {
		t.Fatalf("tail read result %v, want SampleRead", res)
	}
	if s.Flags&renderer.FlagEndOfStream == 0 {
		t.Error("empty tail missing end-of-stream flag")
	}
}

func TestToneFiniteDuration(t *testing.T) {
	tone := NewTone(440, 48000, 2, 60_000)

	var totalFrames int64
	for i := 0; ; i++ {
		if i > 10 {
			t.Fatal("tone never ended")
		}
		s, res := tone.ReadSample()
		if res == renderer.EndOfStream {
			break
		}
		if s.Flags&renderer.FlagEndOfStream != 0 {
			break
		}
		totalFrames += int64(len(s.Payload) / tone.Format().BytesPerFrame())
	}
	if got := tone.Format().FramesToDurationUs(totalFrames); got != 60_000 {
		t.Errorf("generated %dus of audio, want 60000", got)
	}
}
