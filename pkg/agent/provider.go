package agent

import (
	"context"
	"fmt"

	"github.com/user/pulserelay/internal/types"
)

// Reply is the agent layer's answer to one window of activity.
type Reply struct {
	Text    string `json:"text"`
	Agent   string `json:"agent,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
	VoiceID string `json:"voiceId,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Responder produces a reply for a verified batch of activities. The
// agentID comes from the relayed payload and may be empty;
// implementations that don't route per agent ignore it.
type Responder interface {
	Respond(ctx context.Context, agentID string, activities []types.Activity) (*Reply, error)
}

// Static is a Responder with a canned reply, used when no agent backend
// is configured and in tests.
type Static struct {
	Text string
}

// Respond returns the configured text, or a generic acknowledgement
// when none is set.
func (s *Static) Respond(ctx context.Context, agentID string, activities []types.Activity) (*Reply, error) {
	text := s.Text
	if text == "" {
		text = fmt.Sprintf("Processed %d activity events.", len(activities))
	}
	return &Reply{
		Text:    text,
		Agent:   "Agent",
		Summary: fmt.Sprintf("%d events", len(activities)),
	}, nil
}
