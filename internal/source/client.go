package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/user/pulserelay/internal/types"
)

// Client is a thin fetch wrapper over the polling source's REST
// surface. It holds no state beyond the endpoint base URL; the caller
// owns the watermark.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the source API rooted at baseURL
// (e.g. http://localhost:5600/api).
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Info probes the source's info endpoint and returns the raw document.
// Used as a connectivity check at startup.
func (c *Client) Info(ctx context.Context) (json.RawMessage, error) {
	var info json.RawMessage
	if err := c.get(ctx, c.baseURL+"/0/info", &info); err != nil {
		return nil, err
	}
	return info, nil
}

// ListBuckets returns the mapping of bucket id to metadata. An empty
// map is a valid result, not an error.
func (c *Client) ListBuckets(ctx context.Context) (map[types.BucketID]types.BucketMeta, error) {
	var buckets map[types.BucketID]types.BucketMeta
	if err := c.get(ctx, c.baseURL+"/0/buckets/", &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// ListEvents fetches events from the bucket that occurred at or after
// the since instant, up to limit. A zero-length result means "none at
// this tick", never "no more events ever".
func (c *Client) ListEvents(ctx context.Context, bucketID types.BucketID, since time.Time, limit int) ([]types.RawProviderEvent, error) {
	u := fmt.Sprintf("%s/0/buckets/%s/events", c.baseURL, url.PathEscape(string(bucketID)))
	q := url.Values{}
	q.Set("start", since.UTC().Format(time.RFC3339Nano))
	q.Set("limit", strconv.Itoa(limit))

	var events []types.RawProviderEvent
	if err := c.get(ctx, u+"?"+q.Encode(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// get performs a GET and decodes the JSON response into out. Transport
// failures and non-2xx statuses are both returned as errors so the
// poller treats them uniformly as a failed tick.
func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("source request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("source API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
