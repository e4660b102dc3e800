// ABOUTME: Tests for the renderer lifecycle and the three track renderers
// ABOUTME: Uses scripted decoders and recording surfaces, no real devices
package renderer

import (
	"sync"
	"testing"

	"github.com/playsync/playsync-go/internal/clock"
	"github.com/playsync/playsync-go/internal/device"
	"github.com/playsync/playsync-go/internal/emission"
	"github.com/playsync/playsync-go/internal/events"
	"github.com/playsync/playsync-go/internal/pipeline"
	"github.com/playsync/playsync-go/internal/sink"
	"github.com/playsync/playsync-go/internal/video"
)

type scriptDecoder struct {
	samples []Sample
	i       int
}

func (d *scriptDecoder) ReadSample() (Sample, ReadResult) {
	if d.i >= len(d.samples) {
		return Sample{}, EndOfStream
	}
	s := d.samples[d.i]
	d.i++
	return s, SampleRead
}

type recordSurface struct {
	handles  []int64
	releases []int64
}

func (s *recordSurface) ReleaseFrame(handle, releaseTimeNs int64) error {
	s.handles = append(s.handles, handle)
	s.releases = append(s.releases, releaseTimeNs)
	return nil
}

func (s *recordSurface) Capabilities() device.Capabilities {
	return device.Capabilities{TimedRelease: true}
}

func TestLifecycleTransitions(t *testing.T) {
	r := NewMetadataRenderer(&scriptDecoder{}, emission.ModeSynced, func([]byte, int64) {}, events.NewQueue())

	if err := r.Start(); err == nil {
		t.Error("start from disabled must fail")
	}
	if err := r.Enable(0); err != nil {
		t.Fatal(err)
	}
	if err := r.Enable(0); err == nil {
		t.Error("double enable must fail")
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if err := r.Disable(); err == nil {
		t.Error("disable while started must fail")
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); err != nil {
		t.Fatal("restart from stopped must work:", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := r.Disable(); err != nil {
		t.Fatal(err)
	}
	if r.State() != StateDisabled {
		t.Errorf("final state %s, want disabled", r.State())
	}
}

func TestMetadataSyncedEmission(t *testing.T) {
	dec := &scriptDecoder{samples: []Sample{
		{Payload: []byte("a"), PresentationTimeUs: 100},
		{Payload: []byte("b"), PresentationTimeUs: 200},
	}}
	var emitted []string
	r := NewMetadataRenderer(dec, emission.ModeSynced, func(p []byte, _ int64) {
		emitted = append(emitted, string(p))
	}, events.NewQueue())
	r.Enable(0)
	r.Start()

	r.Render(50, 0)
	if len(emitted) != 0 {
		t.Fatalf("emitted %v before due time", emitted)
	}
	r.Render(100, 0)
	if len(emitted) != 1 || emitted[0] != "a" {
		t.Fatalf("at 100: emitted %v, want [a]", emitted)
	}
	r.Render(250, 0)
	if len(emitted) != 2 || emitted[1] != "b" {
		t.Fatalf("at 250: emitted %v, want [a b]", emitted)
	}
	if !r.IsEnded() {
		t.Error("not ended after all items emitted and input done")
	}
}

func TestMetadataRebaseOnOffsetChange(t *testing.T) {
	dec := &scriptDecoder{samples: []Sample{
		{Payload: []byte("x"), PresentationTimeUs: 100},
		{Payload: []byte("y"), PresentationTimeUs: 200},
		{Payload: []byte("z"), PresentationTimeUs: 300},
	}}
	var times []int64
	r := NewMetadataRenderer(dec, emission.ModeSynced, func(_ []byte, timeUs int64) {
		times = append(times, timeUs)
	}, events.NewQueue())
	r.Enable(0)
	r.Start()

	r.Render(0, 0) // queue everything, nothing due
	r.SetStreamOffset(50)

	r.Render(350, 0)
	want := []int64{150, 250, 350}
	if len(times) != 3 {
		t.Fatalf("emitted %d items, want 3", len(times))
	}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("item %d emitted at %d, want %d", i, times[i], want[i])
		}
	}
}

// alwaysReadyDecoder never runs dry; the render loop must bound itself.
type alwaysReadyDecoder struct {
	reads int64
}

func (d *alwaysReadyDecoder) ReadSample() (Sample, ReadResult) {
	d.reads++
	return Sample{Payload: []byte("m"), PresentationTimeUs: d.reads * 1_000_000}, SampleRead
}

func TestMetadataRenderBoundedPerTick(t *testing.T) {
	dec := &alwaysReadyDecoder{}
	r := NewMetadataRenderer(dec, emission.ModeSynced, func([]byte, int64) {}, events.NewQueue())
	r.Enable(0)
	r.Start()

	if err := r.Render(0, 0); err != nil {
		t.Fatal(err)
	}
	if dec.reads > maxSamplesPerTick {
		t.Errorf("one tick read %d samples, want at most %d", dec.reads, maxSamplesPerTick)
	}
	if got := r.PendingCount(); got > maxPendingMetadata {
		t.Errorf("pending %d items after one tick, want at most %d", got, maxPendingMetadata)
	}

	// Further ticks with nothing due keep the queue capped.
	for i := 0; i < 10; i++ {
		if err := r.Render(0, 0); err != nil {
			t.Fatal(err)
		}
	}
	if got := r.PendingCount(); got > maxPendingMetadata {
		t.Errorf("pending %d items after ten ticks, want at most %d", got, maxPendingMetadata)
	}
}

func TestVideoFirstFrameImmediateThenScheduled(t *testing.T) {
	clk := clock.NewManual(0)
	dec := &scriptDecoder{samples: []Sample{
		{PresentationTimeUs: 0, Flags: FlagDecodeOnly},
		{PresentationTimeUs: 33_333, Flags: FlagKeyframe},
		{PresentationTimeUs: 66_666},
		{PresentationTimeUs: 99_999},
	}}
	surf := &recordSurface{}
	ev := events.NewQueue()
	sched := video.NewScheduler(clk, true, nil)
	r := NewVideoRenderer(dec, sched, surf, clk, ev)
	r.Enable(0)
	r.Start()

	if err := r.Render(0, clk.ElapsedRealtimeUs()); err != nil {
		t.Fatal(err)
	}
	if len(surf.releases) != 1 || surf.releases[0] != device.ReleaseImmediately {
		t.Fatalf("first tick releases %v, want one immediate", surf.releases)
	}

	var sawFirstFrame bool
	for _, e := range ev.Drain() {
		if _, ok := e.(events.RenderedFirstFrame); ok {
			sawFirstFrame = true
		}
	}
	if !sawFirstFrame {
		t.Error("no rendered-first-frame event")
	}

	clk.AdvanceUs(33_333)
	if err := r.Render(33_333, clk.ElapsedRealtimeUs()); err != nil {
		t.Fatal(err)
	}
	if len(surf.releases) != 2 {
		t.Fatalf("after tick 2: %d releases, want 2", len(surf.releases))
	}
	if surf.releases[1] == device.ReleaseImmediately {
		t.Error("second frame released immediately, want a scheduled time")
	}

	// A healthy, on-time stream drops nothing.
	if got := r.DroppedFrameCount(); got != 0 {
		t.Errorf("dropped %d frames during an on-time run, want 0", got)
	}
	for _, e := range ev.Drain() {
		if d, ok := e.(events.DroppedFrames); ok {
			t.Errorf("dropped-frames event %+v during an on-time run", d)
		}
	}
}

func TestVideoDropToKeyframeRecovery(t *testing.T) {
	clk := clock.NewManual(0)
	dec := &scriptDecoder{samples: []Sample{
		{PresentationTimeUs: 0, Flags: FlagKeyframe},
		{PresentationTimeUs: 66_666},
		{PresentationTimeUs: 99_999},
		{PresentationTimeUs: 1_000_000, Flags: FlagKeyframe},
	}}
	surf := &recordSurface{}
	sched := video.NewScheduler(clk, true, nil)
	r := NewVideoRenderer(dec, sched, surf, clk, events.NewQueue())
	r.Enable(0)
	r.Start()

	if err := r.Render(0, clk.ElapsedRealtimeUs()); err != nil {
		t.Fatal(err)
	}
	if len(surf.handles) != 1 {
		t.Fatalf("tick 1 released %d frames, want 1", len(surf.handles))
	}

	// Playback jumped far ahead: the non-keyframes are hopelessly late.
	clk.AdvanceUs(33_333)
	if err := r.Render(700_000, clk.ElapsedRealtimeUs()); err != nil {
		t.Fatal(err)
	}
	if got := r.DroppedFrameCount(); got != 2 {
		t.Errorf("dropped %d frames, want 2 (late frame plus keyframe scan)", got)
	}

	// The keyframe is presentable once the position reaches it.
	clk.AdvanceUs(33_333)
	if err := r.Render(1_000_000, clk.ElapsedRealtimeUs()); err != nil {
		t.Fatal(err)
	}
	if len(surf.handles) != 2 {
		t.Fatalf("after recovery: %d releases, want 2", len(surf.handles))
	}
}

type fakeAudioOut struct {
	mu          sync.Mutex
	maxPerWrite int
	written     int
	posFrames   int64
}

func (f *fakeAudioOut) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(p)
	if f.maxPerWrite > 0 && n > f.maxPerWrite {
		n = f.maxPerWrite
	}
	f.written += n
	return n, nil
}

func (f *fakeAudioOut) PositionFrames() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posFrames
}

func (f *fakeAudioOut) BufferSize() int                   { return 4096 }
func (f *fakeAudioOut) LatencyUs() int64                  { return 0 }
func (f *fakeAudioOut) Play() error                       { return nil }
func (f *fakeAudioOut) Pause() error                      { return nil }
func (f *fakeAudioOut) Stop() error                       { return nil }
func (f *fakeAudioOut) Release() error                    { return nil }
func (f *fakeAudioOut) Capabilities() device.Capabilities { return device.Capabilities{} }

func TestAudioRendererBackpressure(t *testing.T) {
	format := pipeline.Format{SampleRate: 48000, Channels: 2, Encoding: pipeline.EncodingPCM16}
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = 0x20
	}
	dec := &scriptDecoder{samples: []Sample{
		{Payload: payload, PresentationTimeUs: 0},
		{Payload: payload, PresentationTimeUs: format.FramesToDurationUs(64)},
	}}

	out := &fakeAudioOut{maxPerWrite: 64}
	snk := sink.New(sink.Options{
		Clock:   clock.NewManual(0),
		Factory: func(cfg sink.Configuration) (device.Output, error) { return out, nil },
	})
	r := NewAudioRenderer(dec, snk, format)
	if err := r.Enable(0); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 30 && !r.IsEnded(); i++ {
		if err := r.Render(0, 0); err != nil {
			t.Fatal(err)
		}
		out.mu.Lock()
		out.posFrames = int64(out.written / 4)
		out.mu.Unlock()
	}

	out.mu.Lock()
	total := out.written
	out.mu.Unlock()
	if total != 512 {
		t.Errorf("device received %d bytes, want all 512", total)
	}
	if !r.IsEnded() {
		t.Error("renderer not ended after full playout")
	}
}
