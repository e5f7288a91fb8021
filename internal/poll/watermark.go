package poll

import (
	"sync"
	"time"
)

// DefaultLookback is how far behind "now" the watermark starts, so the
// first tick picks up events from just before process start.
const DefaultLookback = 30 * time.Second

// Watermark is the cursor separating already-ingested events from
// not-yet-fetched ones. It is strictly non-decreasing across successful
// poll ticks; a failed tick leaves it untouched.
type Watermark struct {
	mu sync.Mutex
	at time.Time
}

// NewWatermark creates a Watermark positioned at the given instant.
func NewWatermark(at time.Time) *Watermark {
	return &Watermark{at: at}
}

// Get returns the current cursor position.
func (w *Watermark) Get() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.at
}

// Advance moves the cursor forward to the given instant. Moves that
// would take it backwards are ignored. Returns whether the cursor moved.
func (w *Watermark) Advance(to time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !to.After(w.at) {
		return false
	}
	w.at = to
	return true
}
