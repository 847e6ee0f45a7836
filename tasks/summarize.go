package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joshmcarthur/linkding-companion/eventlog"
	"github.com/joshmcarthur/linkding-companion/linkding"
	"github.com/joshmcarthur/linkding-companion/llm"
)

const summarizePrompt = `You are a content summarizer. Please provide a concise summary of the following content.
The summary should be 2-3 sentences that capture the main points and purpose of the content.
Focus on what would be most useful in a bookmark description.

Content:

%s

Return only the summary text with no additional formatting or explanation.`

// Summarize turns the bookmark's extracted content into a short description.
// It depends on readability having uploaded a content.txt asset; a bookmark
// without one is a no-op, not an error, so a summarize job racing ahead of
// readability simply does nothing.
func (t *Tasks) Summarize(ctx context.Context, bookmarkID int64) error {
	b, err := t.linkding.GetBookmark(ctx, bookmarkID)
	if err != nil {
		return fmt.Errorf("tasks: summarize fetch bookmark %d: %w", bookmarkID, err)
	}
	if b.IsArchived {
		t.logger.Debug("summarize skipped, archived", "bookmark_id", bookmarkID)
		return nil
	}
	done, err := t.seen(ctx, bookmarkID, eventlog.ActionSummarized)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	content, err := t.contentAsset(ctx, bookmarkID)
	if err != nil {
		return err
	}
	if content == "" {
		t.logger.Info("no content asset to summarize", "bookmark_id", bookmarkID)
		return nil
	}
	if len(content) > t.config.SummaryMaxChars {
		content = content[:t.config.SummaryMaxChars]
	}

	if t.chat == nil {
		return fmt.Errorf("tasks: summarize bookmark %d: %w", bookmarkID, llm.ErrUnconfigured)
	}
	response, err := t.chat.Ask(ctx, fmt.Sprintf(summarizePrompt, content))
	if err != nil {
		return fmt.Errorf("tasks: summarize chat for bookmark %d: %w", bookmarkID, err)
	}
	summary := strings.TrimSpace(response)
	if summary == "" {
		t.logger.Info("empty summary", "bookmark_id", bookmarkID)
		return nil
	}

	originalDescription := b.Description
	b.Description = summary
	if _, err := t.linkding.UpdateBookmark(ctx, bookmarkID, b); err != nil {
		return fmt.Errorf("tasks: summarize update bookmark %d: %w", bookmarkID, err)
	}

	extra := eventlog.SummarizedExtra{
		URL:                 b.URL,
		OriginalDescription: originalDescription,
		SummaryLength:       len(summary),
	}
	if err := t.events.Append(ctx, bookmarkID, time.Now(), extra); err != nil {
		return fmt.Errorf("tasks: summarize record bookmark %d: %w", bookmarkID, err)
	}

	t.logger.Info("bookmark summarized", "bookmark_id", bookmarkID, "summary_length", len(summary))
	return nil
}

// contentAsset finds and downloads the content.txt upload, returning "" when
// no such asset exists.
func (t *Tasks) contentAsset(ctx context.Context, bookmarkID int64) (string, error) {
	var found *linkding.Asset
	it := linkding.Assets(t.linkding, bookmarkID, nil)
	for it.Next(ctx) {
		asset := it.Item()
		if asset.AssetType == "upload" && asset.DisplayName == contentAssetName {
			found = &asset
			break
		}
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("tasks: list assets for bookmark %d: %w", bookmarkID, err)
	}
	if found == nil {
		return "", nil
	}

	data, err := t.linkding.DownloadAsset(ctx, bookmarkID, found.ID)
	if err != nil {
		return "", fmt.Errorf("tasks: download content asset for bookmark %d: %w", bookmarkID, err)
	}
	return string(data), nil
}
