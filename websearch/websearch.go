// Package websearch queries the Brave web search API.
//
// The task layer depends only on the Search method; results come back ranked
// as Brave returns them, and an empty result set is a nil slice, not an
// error.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Result is one ranked search result.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Config configures the client.
type Config struct {
	// APIKey is the Brave subscription token.
	APIKey string
	// Endpoint overrides the production search URL (for testing).
	Endpoint string
	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client talks to the Brave search API.
type Client struct {
	config Config
	httpc  *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		config: cfg,
		httpc:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a search credential is configured. Callers treat a
// disabled client as "feature off", not an error.
func (c *Client) Enabled() bool {
	return c != nil && c.config.APIKey != ""
}

// braveResponse mirrors the slice of the Brave payload this client reads.
type braveResponse struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

// Search runs a query and returns ranked results. A query with no hits
// returns a nil slice and nil error.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("websearch: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: new request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("websearch: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("websearch: read body: %w", err)
	}

	var parsed braveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("websearch: decode: %w", err)
	}
	return parsed.Web.Results, nil
}
