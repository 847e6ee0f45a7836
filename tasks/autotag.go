package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joshmcarthur/linkding-companion/eventlog"
	"github.com/joshmcarthur/linkding-companion/linkding"
	"github.com/joshmcarthur/linkding-companion/llm"
)

const autotagPrompt = `You are a content analyst that tags bookmarks for clustering.
Propose tags for the bookmark below. Only add tags that are not already
present and cannot be approximated by an existing tag.

Bookmark:

%s

The available tags are:

%s

Return the tags as a JSON array of strings with no other formatting. The
response MUST be valid JSON.`

// Autotag asks the chat collaborator for new tags and merges them into the
// bookmark's tag set. An empty proposal writes nothing; a response that is
// not a JSON array is a task failure, left to the queue's retry policy.
func (t *Tasks) Autotag(ctx context.Context, bookmarkID int64) error {
	b, err := t.linkding.GetBookmark(ctx, bookmarkID)
	if err != nil {
		return fmt.Errorf("tasks: autotag fetch bookmark %d: %w", bookmarkID, err)
	}
	if b.IsArchived {
		t.logger.Debug("autotag skipped, archived", "bookmark_id", bookmarkID)
		return nil
	}
	done, err := t.seen(ctx, bookmarkID, eventlog.ActionTagged)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	existing, err := t.allTagNames(ctx)
	if err != nil {
		return err
	}

	fields, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("tasks: autotag encode bookmark %d: %w", bookmarkID, err)
	}
	vocab, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("tasks: autotag encode tags: %w", err)
	}

	if t.chat == nil {
		return fmt.Errorf("tasks: autotag bookmark %d: %w", bookmarkID, llm.ErrUnconfigured)
	}
	response, err := t.chat.Ask(ctx, fmt.Sprintf(autotagPrompt, fields, vocab))
	if err != nil {
		return fmt.Errorf("tasks: autotag chat for bookmark %d: %w", bookmarkID, err)
	}
	tags, err := parseTagArray(response)
	if err != nil {
		return fmt.Errorf("tasks: autotag bookmark %d: %w", bookmarkID, err)
	}
	if len(tags) == 0 {
		t.logger.Info("autotag proposed no new tags", "bookmark_id", bookmarkID)
		return nil
	}

	b.TagNames = b.MergeTags(tags)
	if _, err := t.linkding.UpdateBookmark(ctx, bookmarkID, b); err != nil {
		return fmt.Errorf("tasks: autotag update bookmark %d: %w", bookmarkID, err)
	}
	if err := t.events.Append(ctx, bookmarkID, b.DateAdded, eventlog.TaggedExtra{Tags: tags}); err != nil {
		return fmt.Errorf("tasks: autotag record bookmark %d: %w", bookmarkID, err)
	}

	t.logger.Info("bookmark tagged", "bookmark_id", bookmarkID, "tags", tags)
	return nil
}

func (t *Tasks) allTagNames(ctx context.Context) ([]string, error) {
	var names []string
	it := linkding.Tags(t.linkding, nil)
	for it.Next(ctx) {
		names = append(names, it.Item().Name)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("tasks: list tags: %w", err)
	}
	return names, nil
}

// parseTagArray decodes the chat response strictly as a JSON array of
// strings. Anything else, including prose around valid JSON, is an error.
func parseTagArray(response string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &tags); err != nil {
		return nil, fmt.Errorf("parse tag response: %w", err)
	}
	out := tags[:0]
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out, nil
}
