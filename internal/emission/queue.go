// ABOUTME: FIFO of decoded items held until their presentation time arrives
// ABOUTME: Supports early emission, position-synced emission and offset rebasing
package emission

// Mode selects when a queued item becomes due.
type Mode int

const (
	// ModeSynced releases an item once the playback position reaches its
	// emission time.
	ModeSynced Mode = iota

	// ModeEarly releases items as soon as they are queued, ignoring their
	// emission time.
	ModeEarly
)

type entry[T any] struct {
	item   T
	timeUs int64
}

// Queue holds decoded items in decode order until they are due. Items are
// never reordered: an item is released only after every item queued before
// it.
type Queue[T any] struct {
	mode    Mode
	entries []entry[T]
}

// NewQueue creates a queue in the given emission mode.
func NewQueue[T any](mode Mode) *Queue[T] {
	return &Queue[T]{mode: mode}
}

// Push appends an item due at timeUs. Queue order is decode order regardless
// of timeUs.
func (q *Queue[T]) Push(item T, timeUs int64) {
	q.entries = append(q.entries, entry[T]{item: item, timeUs: timeUs})
}

// PeekDue reports whether the head item is due at positionUs without
// removing it.
func (q *Queue[T]) PeekDue(positionUs int64) bool {
	if len(q.entries) == 0 {
		return false
	}
	return q.mode == ModeEarly || q.entries[0].timeUs <= positionUs
}

// PopIfDue removes and returns the head item if it is due at positionUs.
func (q *Queue[T]) PopIfDue(positionUs int64) (T, int64, bool) {
	var zero T
	if !q.PeekDue(positionUs) {
		return zero, 0, false
	}
	head := q.entries[0]
	q.entries[0] = entry[T]{} // release the reference
	q.entries = q.entries[1:]
	return head.item, head.timeUs, true
}

// Rebase shifts every queued item's emission time by deltaUs. Items queued
// against an old stream offset stay scheduled, never dropped, when the
// offset changes.
func (q *Queue[T]) Rebase(deltaUs int64) {
	for i := range q.entries {
		q.entries[i].timeUs += deltaUs
	}
}

// Clear drops all queued items, e.g. on a position reset.
func (q *Queue[T]) Clear() {
	q.entries = q.entries[:0]
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return len(q.entries) }
