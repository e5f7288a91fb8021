// internal/types/normalize.go
package types

import (
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// Normalize turns a raw provider event from the given bucket into an
// Activity. The free-form data object is read with gjson so that
// watcher-specific fields (app, title, url, status) are picked up when
// present and silently absent otherwise.
func Normalize(bucketID BucketID, raw RawProviderEvent) Activity {
	a := Activity{
		ID:        ActivityIDFrom(raw.ID),
		Timestamp: raw.Timestamp,
		Duration:  int(math.Round(raw.Duration)),
		Category:  string(ClassifyBucket(bucketID)),
	}

	if len(raw.Data) == 0 {
		return a
	}
	a.App = gjson.GetBytes(raw.Data, "app").String()
	a.Title = gjson.GetBytes(raw.Data, "title").String()
	a.URL = gjson.GetBytes(raw.Data, "url").String()
	if status := gjson.GetBytes(raw.Data, "status"); status.Exists() {
		idle := status.String() == "afk"
		a.Idle = &idle
	}
	return a
}

// NormalizeManual parses a manually submitted JSON event body. The body
// is arbitrary JSON but must carry a timestamp; field names from both
// the raw provider shape (data.app) and the flattened manual shape
// (appName, windowTitle) are accepted.
func NormalizeManual(body []byte) (Activity, error) {
	if !gjson.ValidBytes(body) {
		return Activity{}, fmt.Errorf("invalid JSON body")
	}
	ts := gjson.GetBytes(body, "timestamp")
	if !ts.Exists() || ts.String() == "" {
		return Activity{}, fmt.Errorf("event missing timestamp")
	}
	t, err := time.Parse(time.RFC3339, ts.String())
	if err != nil {
		return Activity{}, fmt.Errorf("parse timestamp: %w", err)
	}

	a := Activity{
		ID:        NewActivityID(),
		Timestamp: t,
		Duration:  int(math.Round(gjson.GetBytes(body, "duration").Float())),
		App:       firstString(body, "appName", "app", "data.app"),
		Title:     firstString(body, "windowTitle", "title", "data.title"),
		URL:       firstString(body, "url", "data.url"),
		Category:  gjson.GetBytes(body, "eventType").String(),
	}
	if idle := gjson.GetBytes(body, "idleStatus"); idle.Exists() {
		v := idle.Bool()
		a.Idle = &v
	}
	return a, nil
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
