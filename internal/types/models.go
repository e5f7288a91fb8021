// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// RawProviderEvent is a single event as returned by the polling source.
// Data is the free-form payload whose shape depends on the bucket's
// watcher; it is never mutated.
type RawProviderEvent struct {
	ID        int64           `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Duration  float64         `json:"duration"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// BucketMeta is the metadata the source reports for each bucket. Only
// the fields the pipeline reads are modeled; the rest is ignored.
type BucketMeta struct {
	ID       string `json:"id"`
	Type     string `json:"type,omitempty"`
	Client   string `json:"client,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

// Activity is the normalized form owned by the pipeline. Immutable once
// created; this is the unit stored in the window buffer and relayed
// downstream.
type Activity struct {
	ID        ActivityID `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	App       string     `json:"app"`
	Title     string     `json:"title"`
	URL       string     `json:"url,omitempty"`
	Duration  int        `json:"duration"`
	Category  string     `json:"category,omitempty"`

	// Idle is set only when the source event explicitly carried an
	// idle/afk status. Not part of the wire payload.
	Idle *bool `json:"-"`
}

// CurrentState is the mutable "current context" record maintained by
// the state tracker. LastEventTime is monotonically non-decreasing.
type CurrentState struct {
	CurrentApp      string    `json:"currentApp"`
	CurrentWebsite  string    `json:"currentWebsite"`
	SessionDuration int       `json:"sessionDuration"`
	IsIdle          bool      `json:"isIdle"`
	LastEventTime   time.Time `json:"lastEventTime"`
}

// SignedPayload is the relay wire body. The bytes that are signed must
// be byte-identical to the bytes that are sent and later verified, so
// the payload is marshaled exactly once per send.
type SignedPayload struct {
	ActivityData []Activity `json:"activityData"`
	AgentID      string     `json:"agentId,omitempty"`
}

// ReplyEntry is one reply from the agent layer, cached for the display
// client.
type ReplyEntry struct {
	Text      string    `json:"text"`
	Agent     string    `json:"agent,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	VoiceID   string    `json:"voiceId,omitempty"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}
