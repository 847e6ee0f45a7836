package tasks

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/joshmcarthur/linkding-companion/dispatch"
	"github.com/joshmcarthur/linkding-companion/eventlog"
)

// searchTag marks bookmarks whose URL was rewritten from a search result.
const searchTag = "from-search"

// Search resolves a saved search-engine URL to its first-ranked result and
// rewrites the bookmark to point at the destination. Because that changes
// what every other task would read, a successful resolution re-submits the
// content tasks as follow-ups.
//
// The task is a silent no-op when no search credential is configured, when
// the URL carries no q parameter, and when the provider returns nothing.
func (t *Tasks) Search(ctx context.Context, bookmarkID int64) error {
	if t.searcher == nil || !t.searcher.Enabled() {
		return nil
	}

	b, err := t.linkding.GetBookmark(ctx, bookmarkID)
	if err != nil {
		return fmt.Errorf("tasks: search fetch bookmark %d: %w", bookmarkID, err)
	}
	if b.IsArchived {
		t.logger.Debug("search skipped, archived", "bookmark_id", bookmarkID)
		return nil
	}
	done, err := t.seen(ctx, bookmarkID, eventlog.ActionSearched)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	query := searchQuery(b.URL)
	if query == "" {
		t.logger.Debug("search skipped, no query", "bookmark_id", bookmarkID, "url", b.URL)
		return nil
	}

	results, err := t.searcher.Search(ctx, query)
	if err != nil {
		t.logger.Error("search failed", "bookmark_id", bookmarkID, "query", query, "error", err)
		return nil
	}
	if len(results) == 0 {
		t.logger.Info("search returned no results", "bookmark_id", bookmarkID, "query", query)
		return nil
	}

	first := results[0]
	originalURL := b.URL
	b.URL = first.URL
	b.Title = first.Title
	b.Description = first.Description
	b.Notes = b.Notes +
		"\n\nLast searched: " + time.Now().Format(time.RFC3339) + "\n" +
		"Original search URL: " + originalURL
	b.TagNames = b.MergeTags([]string{searchTag})

	if _, err := t.linkding.UpdateBookmark(ctx, bookmarkID, b); err != nil {
		return fmt.Errorf("tasks: search update bookmark %d: %w", bookmarkID, err)
	}

	extra := eventlog.SearchedExtra{Query: query, OriginalURL: originalURL}
	if err := t.events.Append(ctx, bookmarkID, time.Now(), extra); err != nil {
		return fmt.Errorf("tasks: search record bookmark %d: %w", bookmarkID, err)
	}

	t.logger.Info("search resolved",
		"bookmark_id", bookmarkID, "query", query, "resolved_url", first.URL)
	return t.submitFollowUps(ctx, dispatch.KindSearch, bookmarkID)
}

// searchQuery extracts the q parameter from a saved search URL, or "" when
// the URL has no usable query.
func searchQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return ""
	}
	return u.Query().Get("q")
}
