// Package pending tracks locally submitted ops that have not yet been
// acknowledged by the sequencer: the monotonic id allocator, the
// per-key FIFO of pending ids, and the FIFO of pending clears.
package pending

import (
	"sync"
	"sync/atomic"

	"github.com/sharedmap/kernel/pkg/errors"
)

// IDTracker is a thread-safe monotonic counter, shaped after the
// teacher's LSN tracker: it starts one below its first issued value so
// the first call to Next returns 0.
type IDTracker struct {
	current int64
}

// NewIDTracker returns a tracker whose first Next() call returns 0.
func NewIDTracker() *IDTracker {
	return &IDTracker{current: -1}
}

// Next increments and returns the next id.
func (t *IDTracker) Next() uint64 {
	return uint64(atomic.AddInt64(&t.current, 1))
}

// Current returns the most recently issued id without allocating a new one.
func (t *IDTracker) Current() uint64 {
	return uint64(atomic.LoadInt64(&t.current))
}

// Tracker is the C2 pending-op bookkeeping component: a per-key FIFO of
// pending ids plus a FIFO of pending clear ids. Empty key lists are
// removed so HasAnyPendingKeys and PendingIDsFor never observe stale
// entries.
type Tracker struct {
	ids *IDTracker

	mu     sync.Mutex
	byKey  map[string][]uint64
	clears []uint64
}

// NewTracker returns an empty pending-op tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ids:   NewIDTracker(),
		byKey: make(map[string][]uint64),
	}
}

// NextID allocates the next pending id.
func (t *Tracker) NextID() uint64 {
	return t.ids.Next()
}

// PushKey records id as the newest pending id for key.
func (t *Tracker) PushKey(key string, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKey[key] = append(t.byKey[key], id)
}

// PopKeyFront removes the oldest pending id for key, asserting it
// equals expected. Returns InvariantViolationError on mismatch or if
// key has no pending ids — both signal a protocol bug.
func (t *Tracker) PopKeyFront(key string, expected uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, ok := t.byKey[key]
	if !ok || len(ids) == 0 {
		return &errors.InvariantViolationError{
			Reason: "pop_key_front called with no pending ids for key " + key,
		}
	}
	if ids[0] != expected {
		return &errors.InvariantViolationError{
			Reason: "pop_key_front expected id mismatch for key " + key,
		}
	}

	if len(ids) == 1 {
		delete(t.byKey, key)
	} else {
		t.byKey[key] = ids[1:]
	}
	return nil
}

// PopKeyBack removes the newest pending id for key, asserting it
// equals expected. Used by rollback undoing the most recent submission
// for a key.
func (t *Tracker) PopKeyBack(key string, expected uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, ok := t.byKey[key]
	if !ok || len(ids) == 0 {
		return &errors.InvariantViolationError{
			Reason: "pop_key_back called with no pending ids for key " + key,
		}
	}
	last := len(ids) - 1
	if ids[last] != expected {
		return &errors.InvariantViolationError{
			Reason: "pop_key_back expected id mismatch for key " + key,
		}
	}

	if len(ids) == 1 {
		delete(t.byKey, key)
	} else {
		t.byKey[key] = ids[:last]
	}
	return nil
}

// PushClear records id as the newest pending clear id.
func (t *Tracker) PushClear(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clears = append(t.clears, id)
}

// PopClearFront removes the oldest pending clear id, asserting it
// equals expected.
func (t *Tracker) PopClearFront(expected uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.clears) == 0 {
		return &errors.InvariantViolationError{Reason: "pop_clear_front called with no pending clears"}
	}
	if t.clears[0] != expected {
		return &errors.InvariantViolationError{Reason: "pop_clear_front expected id mismatch"}
	}
	t.clears = t.clears[1:]
	return nil
}

// PopClearBack removes the newest pending clear id, asserting it
// equals expected.
func (t *Tracker) PopClearBack(expected uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.clears) == 0 {
		return &errors.InvariantViolationError{Reason: "pop_clear_back called with no pending clears"}
	}
	last := len(t.clears) - 1
	if t.clears[last] != expected {
		return &errors.InvariantViolationError{Reason: "pop_clear_back expected id mismatch"}
	}
	t.clears = t.clears[:last]
	return nil
}

// HasPendingClear reports whether any clear is awaiting acknowledgement.
func (t *Tracker) HasPendingClear() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clears) > 0
}

// FirstPendingClear returns the oldest pending clear id, if any.
func (t *Tracker) FirstPendingClear() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.clears) == 0 {
		return 0, false
	}
	return t.clears[0], true
}

// PendingIDsFor returns a snapshot of the pending ids for key, oldest
// first. The returned slice is owned by the caller.
func (t *Tracker) PendingIDsFor(key string) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.byKey[key]
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// HasAnyPendingKeys reports whether any key has a pending id outstanding.
func (t *Tracker) HasAnyPendingKeys() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey) > 0
}
