package linkding

import "time"

// Bookmark is a saved URL record owned by the linkding instance. The server
// is the source of truth; this struct is read and written whole on each call.
// Updates must send a full merge of existing fields plus the delta — a
// partial body would silently clear unrelated fields server-side.
type Bookmark struct {
	ID                 int64     `json:"id,omitempty"`
	URL                string    `json:"url"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Notes              string    `json:"notes"`
	WebsiteTitle       string    `json:"website_title,omitempty"`
	WebsiteDescription string    `json:"website_description,omitempty"`
	IsArchived         bool      `json:"is_archived"`
	Unread             bool      `json:"unread"`
	Shared             bool      `json:"shared"`
	TagNames           []string  `json:"tag_names"`
	DateAdded          time.Time `json:"date_added,omitempty"`
	DateModified       time.Time `json:"date_modified,omitempty"`
}

// HasTag reports whether the bookmark already carries the given tag.
func (b *Bookmark) HasTag(name string) bool {
	for _, t := range b.TagNames {
		if t == name {
			return true
		}
	}
	return false
}

// MergeTags returns the union of the bookmark's tags and extra, preserving
// existing order and appending unseen tags in the order given.
func (b *Bookmark) MergeTags(extra []string) []string {
	seen := make(map[string]bool, len(b.TagNames)+len(extra))
	merged := make([]string, 0, len(b.TagNames)+len(extra))
	for _, t := range b.TagNames {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, t := range extra {
		if t != "" && !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	return merged
}

// Asset is a file attached to a bookmark.
type Asset struct {
	ID          int64     `json:"id"`
	AssetType   string    `json:"asset_type"`
	ContentType string    `json:"content_type"`
	DisplayName string    `json:"display_name"`
	Status      string    `json:"status"`
	DateCreated time.Time `json:"date_created"`
}

// Tag is a linkding tag.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DateAdded time.Time `json:"date_added"`
}

// Bundle is a linkding bundle (a saved filter over bookmarks).
type Bundle struct {
	ID           int64     `json:"id,omitempty"`
	Name         string    `json:"name"`
	Search       string    `json:"search"`
	AnyTags      string    `json:"any_tags"`
	AllTags      string    `json:"all_tags"`
	ExcludedTags string    `json:"excluded_tags"`
	Order        int       `json:"order"`
	DateCreated  time.Time `json:"date_created,omitempty"`
	DateModified time.Time `json:"date_modified,omitempty"`
}

// UserProfile is the authenticated user's profile.
type UserProfile struct {
	Theme             string `json:"theme"`
	BookmarkDateFmt   string `json:"bookmark_date_display"`
	BookmarkLinkOpens string `json:"bookmark_link_target"`
	WebArchive        bool   `json:"web_archive_integration_enabled"`
	TagSearch         string `json:"tag_search"`
	EnableSharing     bool   `json:"enable_sharing"`
	EnablePublic      bool   `json:"enable_public_sharing"`
}

// CheckResult is the response of the bookmark check endpoint.
type CheckResult struct {
	Bookmark *Bookmark `json:"bookmark"`
	Metadata struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"metadata"`
	AutoTags []string `json:"auto_tags"`
}

// Page is one page of a cursor-paginated listing. Count is the server-reported
// total across all pages; Next and Previous are opaque cursor URLs, empty when
// absent.
type Page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}
