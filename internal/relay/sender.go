package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/pulserelay/internal/types"
)

// Sender signs window batches and POSTs them to the receiver. Delivery
// is best-effort: on any failure the batch is logged and dropped at the
// call site, never retried or queued.
type Sender struct {
	targetURL string
	secret    string
	agentID   string
	client    *http.Client
}

// NewSender creates a Sender for the given receiver endpoint. agentID
// may be empty; when set it rides along in the payload so the receiver
// can route to the right agent.
func NewSender(targetURL, secret, agentID string) *Sender {
	return &Sender{
		targetURL: targetURL,
		secret:    secret,
		agentID:   agentID,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Send marshals the batch once, signs those exact bytes, and POSTs
// them. Empty batches are skipped without a request. Non-2xx statuses
// are returned as errors so the caller can log them.
func (s *Sender) Send(ctx context.Context, batch []types.Activity) error {
	if len(batch) == 0 {
		return nil
	}

	payload := types.SignedPayload{ActivityData: batch, AgentID: s.agentID}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.targetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(s.secret, body))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("relay rejected batch (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
