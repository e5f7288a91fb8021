package ingest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/user/pulserelay/internal/buffer"
	"github.com/user/pulserelay/internal/state"
	"github.com/user/pulserelay/internal/types"
)

// maxBodyBytes bounds manual event bodies.
const maxBodyBytes = 1 << 20

// Server is the buffer daemon's HTTP surface: manual event ingestion
// (bypasses polling, still governed by the window buffer and its flush
// timer) and debug reads of the current context.
type Server struct {
	tracker *state.Tracker
	window  *buffer.Window
	mux     *http.ServeMux
}

// NewServer creates the ingest Server over the shared tracker and
// window buffer.
func NewServer(tracker *state.Tracker, window *buffer.Window) *Server {
	s := &Server{
		tracker: tracker,
		window:  window,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /activity", s.handleActivity)
	s.mux.HandleFunc("GET /state", s.handleState)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleActivity accepts an arbitrary JSON event. Invalid events are
// logged and dropped but still acknowledged: manual ingestion is
// best-effort telemetry, and the submitting side has nothing useful to
// do with a failure.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}

	if a, err := types.NormalizeManual(body); err != nil {
		slog.Warn("invalid manual event dropped", "error", err)
	} else {
		s.tracker.Apply(a)
		s.window.Append(a)
		slog.Debug("manual event buffered", "app", a.App, "buffer_len", s.window.Len())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "received"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.tracker.Snapshot())
}
