package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/pulserelay/internal/buffer"
	"github.com/user/pulserelay/internal/source"
	"github.com/user/pulserelay/internal/state"
	"github.com/user/pulserelay/internal/types"
)

// eventLimit caps how many events are fetched per bucket per tick.
const eventLimit = 100

// Poller drives the source client on each tick: enumerate buckets,
// fetch events since the watermark, normalize them, fold them into the
// state tracker, and append them to the window buffer. The watermark
// advances only after a fully successful tick.
//
// At most one tick is in flight at a time; a tick firing while the
// previous one is still resolving its network calls is skipped, not
// queued, so backlog cannot grow under a slow provider.
type Poller struct {
	source  *source.Client
	tracker *state.Tracker
	window  *buffer.Window
	wm      *Watermark
	busy    *semaphore.Weighted

	// now is swappable for tests.
	now func() time.Time
}

// NewPoller wires a Poller to its collaborators.
func NewPoller(src *source.Client, tracker *state.Tracker, window *buffer.Window, wm *Watermark) *Poller {
	return &Poller{
		source:  src,
		tracker: tracker,
		window:  window,
		wm:      wm,
		busy:    semaphore.NewWeighted(1),
		now:     time.Now,
	}
}

// Tick runs one poll cycle. Failures are logged and the schedule
// continues; the poller never halts on error.
func (p *Poller) Tick(ctx context.Context) {
	if !p.busy.TryAcquire(1) {
		slog.Debug("poll tick skipped, previous tick still in flight")
		return
	}
	defer p.busy.Release(1)

	if err := p.run(ctx); err != nil {
		slog.Warn("poll tick failed", "error", err)
	}
}

// run performs the actual tick. Any error aborts the tick before the
// watermark advances, so the next tick re-fetches from the same cursor
// (at-least-once ingestion).
func (p *Poller) run(ctx context.Context) error {
	since := p.wm.Get()

	buckets, err := p.source.ListBuckets(ctx)
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}

	ingested := 0
	for id := range buckets {
		events, err := p.source.ListEvents(ctx, id, since, eventLimit)
		if err != nil {
			return fmt.Errorf("list events for %s: %w", id, err)
		}
		for _, raw := range events {
			a := types.Normalize(id, raw)
			p.tracker.Apply(a)
			p.window.Append(a)
			ingested++
		}
	}

	// Advance to "now" rather than the max observed event timestamp;
	// an empty bucket list still advances the cursor.
	p.wm.Advance(p.now())

	if ingested > 0 {
		slog.Debug("poll tick ingested events", "count", ingested, "buckets", len(buckets), "since", since)
	}
	return nil
}
