// Package linkding is a typed HTTP client for the linkding REST API.
//
// The linkding instance remains the source of truth for all bookmark data;
// this client holds no state beyond the connection settings and is safe for
// concurrent use. Every response is classified by status code into the error
// taxonomy in errors.go before the caller sees it.
package linkding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

const defaultUserAgent = "linkding-companion/1.0"

// Options configures a Client.
type Options struct {
	// Host is the base URL of the linkding instance, e.g. "https://links.example.com".
	Host string
	// APIKey is the linkding REST API token.
	APIKey string
	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps response bodies. Default: 10MB.
	MaxBytes int64
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// HTTPClient overrides the default client (mainly for tests).
	HTTPClient *http.Client
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 10 * 1024 * 1024
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
}

// Client talks to one linkding instance.
type Client struct {
	base      *url.URL
	apiKey    string
	userAgent string
	maxBytes  int64
	httpc     *http.Client
}

// New creates a Client. It fails with ErrUnconfigured when host or API key is
// empty — before any network call, so a misconfigured process dies at startup
// rather than on first use.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Host) == "" || strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrUnconfigured
	}
	opts.defaults()

	base, err := url.Parse(opts.Host)
	if err != nil {
		return nil, fmt.Errorf("linkding: parse host: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("linkding: host %q must include scheme and host: %w", opts.Host, ErrUnconfigured)
	}

	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		base:      base,
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		httpc:     httpc,
	}, nil
}

// Bookmarks API

// ListBookmarks returns one page of the bookmark listing. params may carry
// limit, offset and q.
func (c *Client) ListBookmarks(ctx context.Context, params url.Values) (*Page[Bookmark], error) {
	return getPage[Bookmark](ctx, c, "/api/bookmarks/", params)
}

// ListArchivedBookmarks returns one page of the archived bookmark listing.
func (c *Client) ListArchivedBookmarks(ctx context.Context, params url.Values) (*Page[Bookmark], error) {
	return getPage[Bookmark](ctx, c, "/api/bookmarks/archived/", params)
}

// GetBookmark retrieves a single bookmark by id.
func (c *Client) GetBookmark(ctx context.Context, id int64) (*Bookmark, error) {
	return getJSON[Bookmark](ctx, c, fmt.Sprintf("/api/bookmarks/%d/", id), nil)
}

// CheckBookmark asks linkding whether a URL is already bookmarked.
func (c *Client) CheckBookmark(ctx context.Context, bookmarkURL string) (*CheckResult, error) {
	params := url.Values{"url": {bookmarkURL}}
	return getJSON[CheckResult](ctx, c, "/api/bookmarks/check/", params)
}

// CreateBookmark creates a bookmark and returns the server's record.
func (c *Client) CreateBookmark(ctx context.Context, b *Bookmark) (*Bookmark, error) {
	return writeJSON[Bookmark](ctx, c, http.MethodPost, "/api/bookmarks/", b)
}

// UpdateBookmark replaces a bookmark. The caller must pass the full field set
// (fetched record plus delta); linkding treats PUT as a whole-record write.
func (c *Client) UpdateBookmark(ctx context.Context, id int64, b *Bookmark) (*Bookmark, error) {
	return writeJSON[Bookmark](ctx, c, http.MethodPut, fmt.Sprintf("/api/bookmarks/%d/", id), b)
}

// PatchBookmark partially updates a bookmark.
func (c *Client) PatchBookmark(ctx context.Context, id int64, fields map[string]any) (*Bookmark, error) {
	return writeJSON[Bookmark](ctx, c, http.MethodPatch, fmt.Sprintf("/api/bookmarks/%d/", id), fields)
}

// ArchiveBookmark archives a bookmark.
func (c *Client) ArchiveBookmark(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bookmarks/%d/archive/", id), nil, nil)
	return err
}

// UnarchiveBookmark unarchives a bookmark.
func (c *Client) UnarchiveBookmark(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bookmarks/%d/unarchive/", id), nil, nil)
	return err
}

// DeleteBookmark deletes a bookmark.
func (c *Client) DeleteBookmark(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/bookmarks/%d/", id), nil, nil)
	return err
}

// Assets API

// ListAssets returns one page of a bookmark's assets.
func (c *Client) ListAssets(ctx context.Context, bookmarkID int64, params url.Values) (*Page[Asset], error) {
	return getPage[Asset](ctx, c, fmt.Sprintf("/api/bookmarks/%d/assets/", bookmarkID), params)
}

// GetAsset retrieves asset metadata.
func (c *Client) GetAsset(ctx context.Context, bookmarkID, assetID int64) (*Asset, error) {
	return getJSON[Asset](ctx, c, fmt.Sprintf("/api/bookmarks/%d/assets/%d/", bookmarkID, assetID), nil)
}

// DownloadAsset returns the raw bytes of an asset.
func (c *Client) DownloadAsset(ctx context.Context, bookmarkID, assetID int64) ([]byte, error) {
	return c.do(ctx, http.MethodGet,
		fmt.Sprintf("/api/bookmarks/%d/assets/%d/download/", bookmarkID, assetID), nil, nil)
}

// UploadAsset uploads content as a single-file multipart body. The part's
// content type is inferred from the file name's extension.
func (c *Client) UploadAsset(ctx context.Context, bookmarkID int64, filename string, content io.Reader) (*Asset, error) {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("linkding: multipart part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("linkding: multipart copy: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("linkding: multipart close: %w", err)
	}

	path := fmt.Sprintf("/api/bookmarks/%d/assets/upload/", bookmarkID)
	body, err := c.doBody(ctx, http.MethodPost, path, nil, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var asset Asset
	if len(body) > 0 {
		if err := json.Unmarshal(body, &asset); err != nil {
			return nil, fmt.Errorf("linkding: decode asset: %w", err)
		}
	}
	return &asset, nil
}

// DeleteAsset deletes an asset.
func (c *Client) DeleteAsset(ctx context.Context, bookmarkID, assetID int64) error {
	_, err := c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/api/bookmarks/%d/assets/%d/", bookmarkID, assetID), nil, nil)
	return err
}

// Tags API

// ListTags returns one page of tags.
func (c *Client) ListTags(ctx context.Context, params url.Values) (*Page[Tag], error) {
	return getPage[Tag](ctx, c, "/api/tags/", params)
}

// GetTag retrieves a tag by id.
func (c *Client) GetTag(ctx context.Context, id int64) (*Tag, error) {
	return getJSON[Tag](ctx, c, fmt.Sprintf("/api/tags/%d/", id), nil)
}

// CreateTag creates a tag.
func (c *Client) CreateTag(ctx context.Context, name string) (*Tag, error) {
	return writeJSON[Tag](ctx, c, http.MethodPost, "/api/tags/", map[string]string{"name": name})
}

// Bundles API

// ListBundles returns one page of bundles.
func (c *Client) ListBundles(ctx context.Context, params url.Values) (*Page[Bundle], error) {
	return getPage[Bundle](ctx, c, "/api/bundles/", params)
}

// GetBundle retrieves a bundle by id.
func (c *Client) GetBundle(ctx context.Context, id int64) (*Bundle, error) {
	return getJSON[Bundle](ctx, c, fmt.Sprintf("/api/bundles/%d/", id), nil)
}

// CreateBundle creates a bundle.
func (c *Client) CreateBundle(ctx context.Context, b *Bundle) (*Bundle, error) {
	return writeJSON[Bundle](ctx, c, http.MethodPost, "/api/bundles/", b)
}

// UpdateBundle replaces a bundle.
func (c *Client) UpdateBundle(ctx context.Context, id int64, b *Bundle) (*Bundle, error) {
	return writeJSON[Bundle](ctx, c, http.MethodPut, fmt.Sprintf("/api/bundles/%d/", id), b)
}

// PatchBundle partially updates a bundle.
func (c *Client) PatchBundle(ctx context.Context, id int64, fields map[string]any) (*Bundle, error) {
	return writeJSON[Bundle](ctx, c, http.MethodPatch, fmt.Sprintf("/api/bundles/%d/", id), fields)
}

// DeleteBundle deletes a bundle.
func (c *Client) DeleteBundle(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/bundles/%d/", id), nil, nil)
	return err
}

// User API

// GetUserProfile retrieves the authenticated user's profile.
func (c *Client) GetUserProfile(ctx context.Context) (*UserProfile, error) {
	return getJSON[UserProfile](ctx, c, "/api/user/profile/", nil)
}

// request plumbing

func getJSON[T any](ctx context.Context, c *Client, path string, params url.Values) (*T, error) {
	body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("linkding: decode %s: %w", path, err)
	}
	return &out, nil
}

func getPage[T any](ctx context.Context, c *Client, path string, params url.Values) (*Page[T], error) {
	return getJSON[Page[T]](ctx, c, path, params)
}

// getCursor fetches a page at an exact cursor URL as returned in a previous
// page's next field. The cursor is used verbatim, never re-derived from
// parameters.
func getCursor[T any](ctx context.Context, c *Client, cursor string) (*Page[T], error) {
	body, err := c.roundTrip(ctx, http.MethodGet, cursor, nil, "")
	if err != nil {
		return nil, err
	}
	var out Page[T]
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("linkding: decode cursor page: %w", err)
	}
	return &out, nil
}

func writeJSON[T any](ctx context.Context, c *Client, method, path string, payload any) (*T, error) {
	body, err := c.do(ctx, method, path, nil, payload)
	if err != nil {
		return nil, err
	}
	var out T
	if len(body) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("linkding: decode %s: %w", path, err)
	}
	return &out, nil
}

// do performs a request with an optional JSON payload and returns the raw
// response body after status classification.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("linkding: encode payload: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.doBody(ctx, method, path, params, body, contentType)
}

func (c *Client) doBody(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) ([]byte, error) {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return c.roundTrip(ctx, method, u.String(), body, contentType)
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("linkding: new request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkding: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("linkding: read body: %w", err)
	}

	if err := classify(resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

// classify maps a response status to the client error taxonomy.
func classify(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrAuthentication
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &ValidationError{StatusCode: status, Message: extractErrorMessage(body)}
	default:
		return &Error{StatusCode: status, Body: string(body)}
	}
}

// extractErrorMessage pulls a human-readable message out of a validation
// error body: the detail field, the errors field (joined when it is an
// array), or the raw body as a last resort.
func extractErrorMessage(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	if detail, ok := parsed["detail"].(string); ok && detail != "" {
		return detail
	}
	switch errs := parsed["errors"].(type) {
	case string:
		return errs
	case []any:
		parts := make([]string, 0, len(errs))
		for _, e := range errs {
			parts = append(parts, fmt.Sprintf("%v", e))
		}
		return strings.Join(parts, ", ")
	}
	return string(body)
}
