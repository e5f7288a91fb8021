// internal/receiver/server.go
package receiver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/user/pulserelay/internal/archive"
	"github.com/user/pulserelay/internal/relay"
	"github.com/user/pulserelay/internal/types"
	"github.com/user/pulserelay/pkg/agent"
)

// maxBodyBytes bounds inbound relay bodies.
const maxBodyBytes = 1 << 20

// defaultAgentTimeout bounds the downstream agent call per request.
const defaultAgentTimeout = 30 * time.Second

// Server verifies signed relay batches, forwards them to the agent
// responder, and serves the cached replies to the display client.
// Stateless per request except for the shared ReplyCache (and the
// optional archive).
type Server struct {
	secret    string
	responder agent.Responder
	cache     *ReplyCache
	archive   *archive.Store // nil when archiving is disabled
	timeout   time.Duration
	mux       *http.ServeMux

	// now is swappable for tests.
	now func() time.Time
}

// NewServer creates a receiver Server. arch may be nil.
func NewServer(secret string, responder agent.Responder, cache *ReplyCache, arch *archive.Store) *Server {
	s := &Server{
		secret:    secret,
		responder: responder,
		cache:     cache,
		archive:   arch,
		timeout:   defaultAgentTimeout,
		mux:       http.NewServeMux(),
		now:       time.Now,
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /{$}", s.handleRelay)
	s.mux.HandleFunc("GET /latest", s.handleLatest)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// relayResponse is the body returned to the relay sender.
type relayResponse struct {
	Text         string `json:"text"`
	SaveModified bool   `json:"saveModified"`
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	// Server misconfiguration, not a client error.
	if s.secret == "" {
		http.Error(w, "Webhook secret missing", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// The signature is computed over the exact received body bytes.
	if !relay.Verify(s.secret, body, r.Header.Get(relay.SignatureHeader)) {
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	// A malformed batch is a soft no-op, not an error: the pipeline is
	// best-effort telemetry and the sender has nothing useful to do
	// with a failure status here.
	var payload types.SignedPayload
	if !gjson.GetBytes(body, "activityData").IsArray() || json.Unmarshal(body, &payload) != nil {
		s.writeJSON(w, relayResponse{Text: "No activity data", SaveModified: false})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	reply, err := s.responder.Respond(ctx, payload.AgentID, payload.ActivityData)
	if err != nil {
		slog.Error("agent request failed", "error", err, "batch_size", len(payload.ActivityData))
		http.Error(w, `{"error":"Failed to contact agent"}`, http.StatusBadGateway)
		return
	}

	entry := types.ReplyEntry{
		Text:      reply.Text,
		Agent:     reply.Agent,
		Avatar:    reply.Avatar,
		VoiceID:   reply.VoiceID,
		Summary:   reply.Summary,
		Timestamp: s.now().UTC(),
	}
	s.cache.Set(entry)
	if s.archive != nil {
		if err := s.archive.Append(entry); err != nil {
			slog.Warn("failed to archive reply", "error", err)
		}
	}

	s.writeJSON(w, relayResponse{Text: reply.Text, SaveModified: false})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.cache.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, entry)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.cache.History())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
