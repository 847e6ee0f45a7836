package readability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config configures the extractor's HTTP fetching.
type Config struct {
	// Timeout bounds the whole fetch. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body. Default: 10MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
	// MinTextLen is the minimum extracted text length considered a
	// confident extraction. Default: 140.
	MinTextLen int
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "linkding-companion/1.0"
	}
	if c.MinTextLen <= 0 {
		c.MinTextLen = 140
	}
}

// ValidateURL reports whether raw is a fetchable absolute http(s) URL with
// both a scheme and a host. Tasks run this before any extraction attempt.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("readability: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("readability: url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("readability: url %q: missing host", raw)
	}
	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			if err := ValidateURL(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
}

// fetch retrieves a page body, enforcing the size cap and rejecting
// non-HTML responses.
func (e *Extractor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("readability: new request: %w", err)
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("readability: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("readability: http %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text/plain") {
		return nil, fmt.Errorf("readability: unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("readability: read body: %w", err)
	}
	return body, nil
}
