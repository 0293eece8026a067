// Package content talks to the external content repository that owns feeds
// and comments. Community chats only reference its entities by hashtag.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FeedItem is a feed entity as returned by the content repository.
type FeedItem struct {
	ID        int       `json:"id"`
	AuthorID  int       `json:"author_id"`
	Content   string    `json:"content"`
	MediaURLs []string  `json:"media_urls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Client abstracts content-repository reads.
type Client interface {
	FeedsByHashtags(ctx context.Context, hashtags []string, limit int) ([]FeedItem, error)
}

// HTTPClient is a JSON-over-HTTP implementation of Client.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs an HTTPClient.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FeedsByHashtags returns the newest feed entities tagged with any of the
// given hashtags.
func (c *HTTPClient) FeedsByHashtags(ctx context.Context, hashtags []string, limit int) ([]FeedItem, error) {
	if len(hashtags) == 0 {
		return []FeedItem{}, nil
	}

	params := url.Values{}
	params.Set("hashtags", strings.Join(hashtags, ","))
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/feeds?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content repository: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content repository: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Feeds []FeedItem `json:"feeds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Feeds, nil
}
