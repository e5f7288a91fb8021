// Package chat implements the agent.Responder interface against a
// remote chat-style agent endpoint: the activity batch is serialized to
// text and POSTed to {base}/agent/{id}/chat.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/pulserelay/internal/types"
	"github.com/user/pulserelay/pkg/agent"
)

// Client talks to a chat-style agent endpoint.
type Client struct {
	baseURL        string
	defaultAgentID string
	client         *http.Client
}

// New creates a Client. defaultAgentID is used when a relayed payload
// carries no agent id of its own.
func New(baseURL, defaultAgentID string) *Client {
	return &Client{
		baseURL:        baseURL,
		defaultAgentID: defaultAgentID,
		client:         &http.Client{Timeout: 30 * time.Second},
	}
}

// chatRequest is the agent endpoint's request body: the raw activity
// JSON as a single text field.
type chatRequest struct {
	Text string `json:"text"`
}

// chatResponse is the agent endpoint's reply shape.
type chatResponse struct {
	Text  string `json:"text"`
	Agent struct {
		Name    string `json:"name"`
		Avatar  string `json:"avatar"`
		VoiceID string `json:"voiceId"`
	} `json:"agent"`
}

// Respond sends the batch to the agent and maps its reply.
func (c *Client) Respond(ctx context.Context, agentID string, activities []types.Activity) (*agent.Reply, error) {
	if agentID == "" {
		agentID = c.defaultAgentID
	}
	if agentID == "" {
		return nil, fmt.Errorf("no agent id configured")
	}

	activityJSON, err := json.Marshal(activities)
	if err != nil {
		return nil, fmt.Errorf("marshal activities: %w", err)
	}
	body, err := json.Marshal(chatRequest{Text: string(activityJSON)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/agent/%s/chat", c.baseURL, url.PathEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	reply := &agent.Reply{
		Text:    chatResp.Text,
		Agent:   chatResp.Agent.Name,
		Avatar:  chatResp.Agent.Avatar,
		VoiceID: chatResp.Agent.VoiceID,
	}
	if reply.Text == "" {
		reply.Text = string(respBody)
	}
	if reply.Agent == "" {
		reply.Agent = "Agent"
	}
	return reply, nil
}
