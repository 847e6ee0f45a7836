package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joshmcarthur/linkding-companion/dispatch"
	"github.com/joshmcarthur/linkding-companion/eventlog"
	"github.com/joshmcarthur/linkding-companion/readability"
)

// contentAssetName is the display name of the asset holding extracted text.
// Summarize looks it up by this exact name.
const contentAssetName = "content.txt"

// Readability extracts the readable text of the bookmark's page, appends it
// to the bookmark's notes, and stashes it as a content.txt asset for the
// summarize task.
//
// Extraction failure is a soft outcome: the task logs, writes no event, and
// leaves the bookmark eligible for a future attempt if something re-submits
// it. The asset upload is also non-fatal once the notes update has landed.
func (t *Tasks) Readability(ctx context.Context, bookmarkID int64) error {
	b, err := t.linkding.GetBookmark(ctx, bookmarkID)
	if err != nil {
		return fmt.Errorf("tasks: readability fetch bookmark %d: %w", bookmarkID, err)
	}
	if b.IsArchived {
		t.logger.Debug("readability skipped, archived", "bookmark_id", bookmarkID)
		return nil
	}
	done, err := t.seen(ctx, bookmarkID, eventlog.ActionReadabilityExtracted)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if err := readability.ValidateURL(b.URL); err != nil {
		t.logger.Warn("readability skipped, bad url", "bookmark_id", bookmarkID, "url", b.URL)
		return nil
	}

	result, err := t.extractor.Extract(ctx, b.URL)
	if err != nil {
		t.logger.Info("no readable content", "bookmark_id", bookmarkID, "url", b.URL, "error", err)
		return nil
	}

	pageURL := b.URL
	b.Notes = appendContentNote(b.Notes, result.Text)
	if _, err := t.linkding.UpdateBookmark(ctx, bookmarkID, b); err != nil {
		return fmt.Errorf("tasks: readability update bookmark %d: %w", bookmarkID, err)
	}

	if _, err := t.linkding.UploadAsset(ctx, bookmarkID, contentAssetName, strings.NewReader(result.Text)); err != nil {
		// Notes already carry the content; the asset is an optimization
		// for summarize, not a requirement.
		t.logger.Error("content asset upload failed", "bookmark_id", bookmarkID, "error", err)
	}

	extra := eventlog.ReadabilityExtra{URL: pageURL, ContentLength: len(result.Text)}
	if err := t.events.Append(ctx, bookmarkID, time.Now(), extra); err != nil {
		return fmt.Errorf("tasks: readability record bookmark %d: %w", bookmarkID, err)
	}

	t.logger.Info("readable content extracted",
		"bookmark_id", bookmarkID, "url", pageURL, "content_length", len(result.Text))
	return t.submitFollowUps(ctx, dispatch.KindReadability, bookmarkID)
}

// appendContentNote adds the extracted text to existing notes behind a
// visible delimiter.
func appendContentNote(notes, content string) string {
	separator := ""
	if notes != "" {
		separator = "\n\n---\n\n"
	}
	return notes + separator + "Content:\n\n" + content
}
