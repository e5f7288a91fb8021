// internal/types/bucket.go
package types

import "strings"

// BucketType classifies a provider bucket by substring match on its id.
// This is the only discriminator available; the provider publishes no
// authoritative schema.
type BucketType string

const (
	BucketWindow  BucketType = "window"
	BucketWeb     BucketType = "web"
	BucketAFK     BucketType = "afk"
	BucketUnknown BucketType = "unknown"
)

// ClassifyBucket maps a bucket id to its type. Buckets matching none of
// the known substrings are tagged unknown and still ingested.
func ClassifyBucket(id BucketID) BucketType {
	s := string(id)
	switch {
	case strings.Contains(s, "window"):
		return BucketWindow
	case strings.Contains(s, "web"):
		return BucketWeb
	case strings.Contains(s, "afk"):
		return BucketAFK
	default:
		return BucketUnknown
	}
}
