// internal/state/tracker.go
package state

import (
	"sync"
	"time"

	"github.com/user/pulserelay/internal/types"
)

// Tracker maintains the process-wide "current context" record. Every
// ingested event passes through Apply; relay payload builders and the
// debug endpoint read it via Snapshot.
type Tracker struct {
	mu  sync.Mutex
	cur types.CurrentState

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker creates a Tracker with zeroed state. The state is never
// reset afterwards; it lives for the process lifetime.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Apply folds one activity into the current state. App and website are
// overwritten only when the event carries a non-empty value; the idle
// flag only when the event explicitly carries one. LastEventTime is
// refreshed to now on every applied event (a liveness indicator, not a
// replay of provider time) and never moves backwards.
func (t *Tracker) Apply(a types.Activity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a.App != "" {
		t.cur.CurrentApp = a.App
	}
	if a.URL != "" {
		t.cur.CurrentWebsite = a.URL
	}
	if a.Idle != nil {
		t.cur.IsIdle = *a.Idle
	}
	t.cur.SessionDuration += a.Duration

	if now := t.now(); now.After(t.cur.LastEventTime) {
		t.cur.LastEventTime = now
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() types.CurrentState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}
