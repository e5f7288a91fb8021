package buffer

import (
	"sync"

	"github.com/user/pulserelay/internal/types"
)

// Window accumulates normalized activities between flush points.
// Insertion order is preserved; downstream processing is chronological.
//
// Thread-safe: the poller and the manual-ingest handler append while
// the flush timer flushes. Flush swaps the backing slice under the
// same mutex that guards Append, so a flush returns exactly the
// activities appended since the previous flush; appends that race with
// a flush land in the next window.
type Window struct {
	mu         sync.Mutex
	activities []types.Activity
}

// New creates an empty Window.
func New() *Window {
	return &Window{}
}

// Append adds one activity to the current window.
func (w *Window) Append(a types.Activity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.activities = append(w.activities, a)
}

// Flush atomically replaces the buffer with an empty one and returns
// the prior contents. Returns nil when the window is empty, in which
// case the caller skips the relay send entirely.
func (w *Window) Flush() []types.Activity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.activities
	w.activities = nil
	return out
}

// Len returns the number of activities in the current window.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.activities)
}
