package tasks

import (
	"context"
	"fmt"

	"github.com/joshmcarthur/linkding-companion/eventlog"
	"github.com/joshmcarthur/linkding-companion/linkding"
)

// Sync walks the full bookmark listing and, for each bookmark not yet
// recorded as created, submits the first-wave tasks and appends a
// bookmark_created event carrying a snapshot of the bookmark.
//
// The sweep is safe to re-run on an interval: seen bookmarks cost one
// existence check, and a crash between the submissions and the event write
// heals on the next sweep (at the cost of a possible duplicate submission,
// which the task guards absorb).
func (t *Tasks) Sync(ctx context.Context) error {
	t.logger.Info("sync sweep started")

	var unseen int
	it := linkding.Bookmarks(t.linkding, nil)
	for it.Next(ctx) {
		b := it.Item()
		done, err := t.seen(ctx, b.ID, eventlog.ActionBookmarkCreated)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		if b.IsArchived {
			continue
		}

		for _, kind := range t.firstWave() {
			if err := t.queue.Submit(ctx, kind, b.ID); err != nil {
				return fmt.Errorf("tasks: submit %s for bookmark %d: %w", kind, b.ID, err)
			}
		}
		// occurred_at is the bookmark's own creation time, not sweep time.
		if err := t.events.Append(ctx, b.ID, b.DateAdded, eventlog.CreatedExtra{Bookmark: b}); err != nil {
			return fmt.Errorf("tasks: record bookmark %d: %w", b.ID, err)
		}
		unseen++
		t.logger.Info("new bookmark detected", "bookmark_id", b.ID, "url", b.URL)
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("tasks: sync sweep: %w", err)
	}

	t.logger.Info("sync sweep finished", "new_bookmarks", unseen)
	return nil
}
