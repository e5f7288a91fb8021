package receiver

import (
	"sync"

	"github.com/user/pulserelay/internal/types"
)

// historyLimit caps the reply history; the oldest entry is evicted
// when a new one would exceed it.
const historyLimit = 100

// ReplyCache holds the last agent reply plus a bounded history, served
// to the polling display client. Replies are never deduplicated: a
// replayed batch intentionally produces a fresh entry.
type ReplyCache struct {
	mu      sync.Mutex
	last    *types.ReplyEntry
	history []types.ReplyEntry
}

// NewReplyCache creates an empty cache.
func NewReplyCache() *ReplyCache {
	return &ReplyCache{}
}

// Set stores e as the latest reply and appends it to the history,
// evicting the oldest entry beyond the cap.
func (c *ReplyCache) Set(e types.ReplyEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &e
	c.history = append(c.history, e)
	if len(c.history) > historyLimit {
		c.history = c.history[len(c.history)-historyLimit:]
	}
}

// Latest returns the most recent reply, or false when none has been
// stored yet.
func (c *ReplyCache) Latest() (types.ReplyEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return types.ReplyEntry{}, false
	}
	return *c.last, true
}

// History returns a copy of the history, oldest first (newest last).
func (c *ReplyCache) History() []types.ReplyEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ReplyEntry, len(c.history))
	copy(out, c.history)
	return out
}

// Seed preloads the cache from archived entries, oldest first. The
// newest seeded entry becomes the latest reply. Intended for startup,
// before the server begins accepting requests.
func (c *ReplyCache) Seed(entries []types.ReplyEntry) {
	for _, e := range entries {
		c.Set(e)
	}
}
