// ABOUTME: Tests for the media position checkpoint queue
// ABOUTME: Covers FIFO consumption, ordering and speed-scaled mapping
package sink

import "testing"

func TestCheckpointFIFOConsumption(t *testing.T) {
	q := newCheckpointQueue()
	q.push(checkpoint{params: DefaultPlaybackParameters, mediaTimeUs: 0, devicePositionUs: 0})
	q.push(checkpoint{params: DefaultPlaybackParameters, mediaTimeUs: 10_000, devicePositionUs: 1000})
	q.push(checkpoint{params: DefaultPlaybackParameters, mediaTimeUs: 50_000, devicePositionUs: 5000})

	// Between the second and third checkpoints, the second is in effect.
	got := q.apply(2500)
	want := int64(10_000 + 1500)
	if got != want {
		t.Errorf("apply(2500) = %d, want %d", got, want)
	}

	// Past the third, the third is in effect and the earlier ones are gone.
	got = q.apply(6000)
	want = 50_000 + 1000
	if got != want {
		t.Errorf("apply(6000) = %d, want %d", got, want)
	}
}

func TestCheckpointRegressedPositionClamped(t *testing.T) {
	q := newCheckpointQueue()
	q.push(checkpoint{params: DefaultPlaybackParameters, mediaTimeUs: 0, devicePositionUs: 5000})
	q.push(checkpoint{params: DefaultPlaybackParameters, mediaTimeUs: 10_000, devicePositionUs: 3000})

	if got := q.last().devicePositionUs; got != 5000 {
		t.Errorf("regressed device position kept at %d, want clamp to 5000", got)
	}
}

func TestCheckpointSpeedScaling(t *testing.T) {
	q := newCheckpointQueue()
	q.reset(PlaybackParameters{Speed: 2.0, Pitch: 1.0})

	// No newer checkpoint: scale forward from the current one.
	got := q.apply(1000)
	if got != 2000 {
		t.Errorf("apply(1000) at 2x = %d, want 2000", got)
	}
}

func TestCheckpointNextScalingWithPending(t *testing.T) {
	q := newCheckpointQueue()
	q.reset(PlaybackParameters{Speed: 2.0, Pitch: 1.0})
	q.push(checkpoint{params: DefaultPlaybackParameters, mediaTimeUs: 10_000, devicePositionUs: 4000})

	// A newer checkpoint is queued: scale the small gap to it backward from
	// its media time instead of the large gap from the current one.
	got := q.apply(1000)
	want := int64(10_000 - (4000-1000)*2)
	if got != want {
		t.Errorf("apply(1000) with pending = %d, want %d", got, want)
	}
}

func TestCheckpointResetDropsPending(t *testing.T) {
	q := newCheckpointQueue()
	q.push(checkpoint{params: DefaultPlaybackParameters, mediaTimeUs: 99_000, devicePositionUs: 100})
	q.reset(DefaultPlaybackParameters)

	if got := q.apply(500); got != 500 {
		t.Errorf("apply(500) after reset = %d, want 500", got)
	}
}
