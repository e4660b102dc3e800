// ABOUTME: Audio sink error taxonomy and deadline-based retry holder
// ABOUTME: Recoverable failures self-heal inside a retry window before surfacing
package sink

import (
	"errors"
	"fmt"

	"github.com/playsync/playsync-go/internal/pipeline"
)

// retryWindowMs is how long a recoverable failure may keep recurring before
// it surfaces to the caller.
const retryWindowMs = 100

// ErrStalled indicates the position tracker saw no device progress despite
// pending data. Handled internally by flush-and-retry; surfaced only if it
// repeats.
var ErrStalled = errors.New("sink: output device stalled")

// ConfigurationError means the requested output shape cannot be satisfied.
// Fatal to the configure attempt; the caller picks another configuration.
type ConfigurationError struct {
	Format pipeline.Format
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sink: cannot satisfy configuration %s: %s", e.Format, e.Reason)
}

// InitializationError means device creation failed. Recoverable when a
// smaller buffer or non-offload fallback exists.
type InitializationError struct {
	Recoverable bool
	Err         error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("sink: device initialization failed (recoverable=%t): %v", e.Recoverable, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// WriteError means a device write failed. Recoverable when data had already
// flowed successfully or when disabling offload resolves it.
type WriteError struct {
	Recoverable bool
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sink: device write failed (recoverable=%t): %v", e.Recoverable, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// pendingErrorHolder delays surfacing an error class until it has persisted
// past the retry window. Transient glitches clear the holder and never
// surface.
type pendingErrorHolder struct {
	windowMs   int64
	nowMs      func() int64
	pending    error
	deadlineMs int64
}

func newPendingErrorHolder(windowMs int64, nowMs func() int64) *pendingErrorHolder {
	return &pendingErrorHolder{windowMs: windowMs, nowMs: nowMs}
}

// hold registers another occurrence of the failure. It returns the held
// error once the deadline passes, nil while the window is still open.
func (h *pendingErrorHolder) hold(err error) error {
	now := h.nowMs()
	if h.pending == nil {
		h.pending = err
		h.deadlineMs = now + h.windowMs
	}
	if now >= h.deadlineMs {
		pending := h.pending
		h.clear()
		return pending
	}
	return nil
}

// clear forgets the pending failure, e.g. after a successful operation.
func (h *pendingErrorHolder) clear() {
	h.pending = nil
}
