// ABOUTME: Media position checkpoints mapping device playout time to media time
// ABOUTME: Reconstructs position across speed changes and silence skipping
package sink

import "github.com/sirupsen/logrus"

// checkpoint records that from devicePositionUs onward, mediaTimeUs and
// params describe the media-time mapping.
type checkpoint struct {
	params           PlaybackParameters
	mediaTimeUs      int64
	devicePositionUs int64
}

// checkpointQueue is a FIFO of pending checkpoints plus the one currently in
// effect. devicePositionUs is strictly non-decreasing across the queue.
type checkpointQueue struct {
	current checkpoint
	pending []checkpoint
}

func newCheckpointQueue() *checkpointQueue {
	return &checkpointQueue{
		current: checkpoint{params: DefaultPlaybackParameters},
	}
}

// push appends a checkpoint taking effect at devicePositionUs.
func (q *checkpointQueue) push(cp checkpoint) {
	if last := q.last(); cp.devicePositionUs < last.devicePositionUs {
		logrus.WithFields(logrus.Fields{
			"devicePositionUs": cp.devicePositionUs,
			"lastPositionUs":   last.devicePositionUs,
		}).Warn("checkpoint device position regressed, clamping")
		cp.devicePositionUs = last.devicePositionUs
	}
	q.pending = append(q.pending, cp)
}

func (q *checkpointQueue) last() checkpoint {
	if len(q.pending) > 0 {
		return q.pending[len(q.pending)-1]
	}
	return q.current
}

// reset drops all pending checkpoints and re-bases the mapping at device
// position zero with the given parameters.
func (q *checkpointQueue) reset(params PlaybackParameters) {
	q.current = checkpoint{params: params}
	q.pending = q.pending[:0]
}

// apply maps a device playout position to media time. Checkpoints whose
// device position has been reached become current. With non-default speed
// and a newer checkpoint already queued, the gap to the next checkpoint is
// scaled instead of the gap from the previous one: the next gap is always
// small, which bounds the error from any difference between requested and
// achieved speed.
func (q *checkpointQueue) apply(devicePositionUs int64) int64 {
	for len(q.pending) > 0 && devicePositionUs >= q.pending[0].devicePositionUs {
		q.current = q.pending[0]
		q.pending = q.pending[1:]
	}

	playoutSinceCheckpointUs := devicePositionUs - q.current.devicePositionUs
	if q.current.params.IsDefault() {
		return q.current.mediaTimeUs + playoutSinceCheckpointUs
	}
	if len(q.pending) == 0 {
		return q.current.mediaTimeUs + mediaDurationUs(playoutSinceCheckpointUs, q.current.params.Speed)
	}
	next := q.pending[0]
	playoutUntilNextUs := next.devicePositionUs - devicePositionUs
	return next.mediaTimeUs - mediaDurationUs(playoutUntilNextUs, q.current.params.Speed)
}

// mediaDurationUs scales a playout duration by the speed factor.
func mediaDurationUs(playoutUs int64, speed float64) int64 {
	return int64(float64(playoutUs) * speed)
}
