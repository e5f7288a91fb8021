// internal/types/ids.go
package types

import (
	"strconv"

	"github.com/google/uuid"
)

type ActivityID string
type BucketID string

// NewActivityID synthesizes an id for events that arrive without one.
func NewActivityID() ActivityID {
	return ActivityID(uuid.New().String())
}

// ActivityIDFrom returns the upstream event id when present, or a
// synthesized one otherwise.
func ActivityIDFrom(upstream int64) ActivityID {
	if upstream != 0 {
		return ActivityID(strconv.FormatInt(upstream, 10))
	}
	return NewActivityID()
}
