package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/pulserelay/internal/relay"
	"github.com/user/pulserelay/internal/types"
	"github.com/user/pulserelay/pkg/agent"
)

type mockResponder struct {
	lastAgentID    string
	lastActivities []types.Activity
	reply          *agent.Reply
	err            error
	calls          int
}

func (m *mockResponder) Respond(ctx context.Context, agentID string, activities []types.Activity) (*agent.Reply, error) {
	m.calls++
	m.lastAgentID = agentID
	m.lastActivities = activities
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

const testSecret = "test-secret"

func setupServer(mock *mockResponder) *Server {
	return NewServer(testSecret, mock, NewReplyCache(), nil)
}

func signedRequest(t *testing.T, secret string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(relay.SignatureHeader, relay.Sign(secret, body))
	return req
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupServer(&mockResponder{reply: &agent.Reply{}})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
	if resp["timestamp"] == "" {
		t.Error("expected a timestamp")
	}
}

func TestValidSignedBatch(t *testing.T) {
	mock := &mockResponder{reply: &agent.Reply{Text: "Nice focus session.", Agent: "Muse"}}
	srv := setupServer(mock)

	body, _ := json.Marshal(types.SignedPayload{
		ActivityData: []types.Activity{{ID: "1", App: "vscode", Duration: 120}},
		AgentID:      "agent-9",
	})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, signedRequest(t, testSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp relayResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Text != "Nice focus session." {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.SaveModified {
		t.Error("saveModified should be false")
	}
	if mock.lastAgentID != "agent-9" {
		t.Errorf("expected agent id agent-9, got %q", mock.lastAgentID)
	}
	if len(mock.lastActivities) != 1 || mock.lastActivities[0].App != "vscode" {
		t.Errorf("unexpected activities %+v", mock.lastActivities)
	}

	// The reply is now cached.
	latest, ok := srv.cache.Latest()
	if !ok || latest.Text != "Nice focus session." || latest.Agent != "Muse" {
		t.Errorf("expected cached reply, got %+v ok=%v", latest, ok)
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	mock := &mockResponder{reply: &agent.Reply{Text: "x"}}
	srv := setupServer(mock)

	body := []byte(`{"activityData":[]}`)
	req := signedRequest(t, testSecret, body)
	req.Header.Set(relay.SignatureHeader, relay.Sign("wrong-secret", body))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
	if mock.calls != 0 {
		t.Error("responder must not be called for a bad signature")
	}
}

func TestMissingSignatureRejected(t *testing.T) {
	srv := setupServer(&mockResponder{reply: &agent.Reply{}})

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"activityData":[]}`)))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
}

func TestMissingSecretIs500(t *testing.T) {
	srv := NewServer("", &mockResponder{reply: &agent.Reply{}}, NewReplyCache(), nil)

	body := []byte(`{"activityData":[]}`)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, signedRequest(t, "anything", body))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
}

func TestNonArrayActivityDataIsSoftNoOp(t *testing.T) {
	mock := &mockResponder{reply: &agent.Reply{Text: "x"}}
	srv := setupServer(mock)

	body := []byte(`{"activityData":"not an array"}`)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, signedRequest(t, testSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp relayResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Text != "No activity data" || resp.SaveModified {
		t.Errorf("unexpected soft no-op response %+v", resp)
	}
	if mock.calls != 0 {
		t.Error("responder must not be called for a malformed batch")
	}
	if _, ok := srv.cache.Latest(); ok {
		t.Error("malformed batch must not touch the cache")
	}
}

func TestAgentFailureIs502(t *testing.T) {
	mock := &mockResponder{err: fmt.Errorf("agent offline")}
	srv := setupServer(mock)

	body := []byte(`{"activityData":[]}`)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, signedRequest(t, testSecret, body))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}
	if _, ok := srv.cache.Latest(); ok {
		t.Error("failed agent call must not touch the cache")
	}
}

func TestLatestBeforeAnyRelayIs204(t *testing.T) {
	srv := setupServer(&mockResponder{reply: &agent.Reply{}})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/latest", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestLatestAfterRelay(t *testing.T) {
	srv := setupServer(&mockResponder{reply: &agent.Reply{Text: "cached reply", Agent: "Muse"}})

	body := []byte(`{"activityData":[{"id":"1","timestamp":"2025-06-01T12:00:00Z","app":"vscode","title":"","duration":1}]}`)
	srv.ServeHTTP(httptest.NewRecorder(), signedRequest(t, testSecret, body))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/latest", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var entry types.ReplyEntry
	if err := json.NewDecoder(w.Body).Decode(&entry); err != nil {
		t.Fatal(err)
	}
	if entry.Text != "cached reply" {
		t.Errorf("unexpected latest %+v", entry)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := setupServer(&mockResponder{reply: &agent.Reply{Text: "r"}})

	// Empty history serves an empty array, not null.
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("expected empty array, got %q", got)
	}

	for i := 0; i < 3; i++ {
		body := []byte(fmt.Sprintf(`{"activityData":[],"agentId":"a%d"}`, i))
		srv.ServeHTTP(httptest.NewRecorder(), signedRequest(t, testSecret, body))
	}

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))
	var history []types.ReplyEntry
	if err := json.NewDecoder(w.Body).Decode(&history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 history entries, got %d", len(history))
	}
}

func TestReplayedBatchProducesNewEntry(t *testing.T) {
	srv := setupServer(&mockResponder{reply: &agent.Reply{Text: "again"}})

	body := []byte(`{"activityData":[]}`)
	srv.ServeHTTP(httptest.NewRecorder(), signedRequest(t, testSecret, body))
	srv.ServeHTTP(httptest.NewRecorder(), signedRequest(t, testSecret, body))

	if got := len(srv.cache.History()); got != 2 {
		t.Errorf("expected 2 entries from replayed batch (no dedup), got %d", got)
	}
}
