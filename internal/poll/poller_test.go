package poll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/pulserelay/internal/buffer"
	"github.com/user/pulserelay/internal/source"
	"github.com/user/pulserelay/internal/state"
)

func newTestPoller(srvURL string, start time.Time) (*Poller, *buffer.Window, *state.Tracker, *Watermark) {
	tracker := state.NewTracker()
	window := buffer.New()
	wm := NewWatermark(start)
	p := NewPoller(source.New(srvURL), tracker, window, wm)
	return p, window, tracker, wm
}

func TestTickIngestsAndAdvancesWatermark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/0/buckets/":
			w.Write([]byte(`{"aw-watcher-window_host":{"id":"aw-watcher-window_host"}}`))
		case "/0/buckets/aw-watcher-window_host/events":
			w.Write([]byte(`[{"timestamp":"2025-06-01T12:00:00Z","duration":120,"data":{"app":"vscode","title":"main.go"}}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	start := time.Date(2025, 6, 1, 11, 59, 30, 0, time.UTC)
	now := time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC)
	p, window, tracker, wm := newTestPoller(srv.URL, start)
	p.now = func() time.Time { return now }

	p.Tick(context.Background())

	got := window.Flush()
	if len(got) != 1 {
		t.Fatalf("expected 1 activity in window, got %d", len(got))
	}
	if got[0].App != "vscode" || got[0].Duration != 120 || got[0].Category != "window" {
		t.Errorf("unexpected normalized activity %+v", got[0])
	}
	if cur := tracker.Snapshot(); cur.CurrentApp != "vscode" {
		t.Errorf("expected tracker app vscode, got %q", cur.CurrentApp)
	}
	if !wm.Get().Equal(now) {
		t.Errorf("expected watermark advanced to %v, got %v", now, wm.Get())
	}
}

func TestFailedTickDoesNotAdvanceWatermark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p, _, _, wm := newTestPoller(srv.URL, start)

	p.Tick(context.Background())

	if !wm.Get().Equal(start) {
		t.Errorf("failed tick advanced watermark from %v to %v", start, wm.Get())
	}
}

func TestFailedEventFetchDoesNotAdvanceWatermark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/0/buckets/" {
			w.Write([]byte(`{"b1":{"id":"b1"}}`))
			return
		}
		http.Error(w, "bucket gone", http.StatusNotFound)
	}))
	defer srv.Close()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p, _, _, wm := newTestPoller(srv.URL, start)

	p.Tick(context.Background())

	if !wm.Get().Equal(start) {
		t.Errorf("tick with failing event fetch advanced watermark")
	}
}

func TestEmptyBucketListStillAdvances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(2 * time.Second)
	p, window, _, wm := newTestPoller(srv.URL, start)
	p.now = func() time.Time { return now }

	p.Tick(context.Background())

	if window.Len() != 0 {
		t.Errorf("expected no activities, got %d", window.Len())
	}
	if !wm.Get().Equal(now) {
		t.Errorf("expected watermark advanced on empty bucket list, got %v", wm.Get())
	}
}

func TestUnknownBucketStillIngested(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/0/buckets/" {
			w.Write([]byte(`{"mystery-bucket":{"id":"mystery-bucket"}}`))
			return
		}
		w.Write([]byte(`[{"timestamp":"2025-06-01T12:00:00Z","duration":1,"data":{"title":"x"}}]`))
	}))
	defer srv.Close()

	p, window, _, _ := newTestPoller(srv.URL, time.Now().Add(-time.Minute))
	p.Tick(context.Background())

	got := window.Flush()
	if len(got) != 1 {
		t.Fatalf("expected unknown-bucket event ingested, got %d", len(got))
	}
	if got[0].Category != "unknown" {
		t.Errorf("expected category unknown, got %q", got[0].Category)
	}
}

func TestOverlappingTickSkipped(t *testing.T) {
	release := make(chan struct{})
	var listings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listings.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, _, _, _ := newTestPoller(srv.URL, time.Now())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Tick(context.Background())
	}()

	// Wait for the first tick to be inside its network call, then fire
	// a second tick. It must bail without touching the source.
	for listings.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	p.Tick(context.Background())
	if n := listings.Load(); n != 1 {
		t.Errorf("expected overlapping tick to skip the source, saw %d listings", n)
	}

	close(release)
	wg.Wait()
}

func TestWatermarkMonotonic(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	wm := NewWatermark(base)

	if wm.Advance(base.Add(-time.Second)) {
		t.Error("watermark moved backwards")
	}
	if !wm.Advance(base.Add(time.Second)) {
		t.Error("watermark refused a forward move")
	}
	if wm.Advance(base.Add(time.Second)) {
		t.Error("watermark advanced to an equal instant")
	}
	if !wm.Get().Equal(base.Add(time.Second)) {
		t.Errorf("unexpected watermark %v", wm.Get())
	}
}
