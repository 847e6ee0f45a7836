// Package eventlog is the append-only record of enrichment actions.
//
// One row per (bookmark, action) occurrence is the intended shape, but the
// table enforces no uniqueness: Append always inserts, and callers run
// Exists first as the idempotency guard. The guard-then-append pair is not
// atomic, so two racing workers can both pass the guard and produce a
// duplicate row — an accepted, bounded outcome for enrichment work. Rows are
// never updated or deleted.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joshmcarthur/linkding-companion/dbopen"
)

// Schema creates the events table.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    bookmark_id INTEGER NOT NULL,
    action      TEXT NOT NULL,
    occurred_at INTEGER NOT NULL,
    extra       TEXT NOT NULL DEFAULT '{}',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_bookmark_action ON events (bookmark_id, action);
`

// Event is one recorded enrichment fact. BookmarkID references a bookmark
// owned by the linkding instance; the bookmark may be deleted upstream
// without this row going away.
type Event struct {
	ID         int64
	BookmarkID int64
	Action     Action
	OccurredAt time.Time
	Extra      json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store wraps the events table.
type Store struct {
	db *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the events table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Append unconditionally inserts a new event. The action comes from the
// payload type, so the recorded action and its extra shape can never
// disagree. Duplicates are not rejected; callers are expected to have
// checked Exists first.
func (s *Store) Append(ctx context.Context, bookmarkID int64, occurredAt time.Time, extra Payload) error {
	data, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("eventlog: encode extra: %w", err)
	}
	now := time.Now().UnixMilli()
	_, err = dbopen.Exec(ctx, s.db,
		`INSERT INTO events (bookmark_id, action, occurred_at, extra, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		bookmarkID, string(extra.EventAction()), occurredAt.UnixMilli(), string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("eventlog: append: %w", err)
	}
	return nil
}

// Exists reports whether an event for (bookmarkID, action) has been
// recorded. This is the idempotency guard every task runs before acting.
func (s *Store) Exists(ctx context.Context, bookmarkID int64, action Action) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM events WHERE bookmark_id = ? AND action = ? LIMIT 1`,
		bookmarkID, string(action),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("eventlog: exists: %w", err)
	}
	return true, nil
}

// ListByBookmark returns all events for one bookmark, oldest first.
func (s *Store) ListByBookmark(ctx context.Context, bookmarkID int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bookmark_id, action, occurred_at, extra, created_at, updated_at
		FROM events WHERE bookmark_id = ? ORDER BY id ASC`, bookmarkID)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CountByAction returns per-action event counts, for operator reporting.
func (s *Store) CountByAction(ctx context.Context) (map[Action]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM events GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("eventlog: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[Action]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("eventlog: scan count: %w", err)
		}
		counts[Action(action)] = n
	}
	return counts, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var e Event
		var action, extra string
		var occurredAt, createdAt, updatedAt int64
		if err := rows.Scan(&e.ID, &e.BookmarkID, &action, &occurredAt, &extra, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("eventlog: scan event: %w", err)
		}
		e.Action = Action(action)
		e.OccurredAt = time.UnixMilli(occurredAt)
		e.Extra = json.RawMessage(extra)
		e.CreatedAt = time.UnixMilli(createdAt)
		e.UpdatedAt = time.UnixMilli(updatedAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}
