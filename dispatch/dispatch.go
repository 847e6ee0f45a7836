// Package dispatch implements the enrichment job queue backed by SQLite.
//
// Each job is (task kind, bookmark id). Claimed jobs are invisible to other
// consumers for a configurable duration; a worker that finishes acks (deletes)
// the job, a worker that fails nacks it (immediately visible again), and a
// worker that crashes simply lets the visibility timeout lapse — the job
// reappears and another consumer picks it up. Delivery is therefore
// at-least-once; tasks rely on the event log for idempotency, never on the
// queue.
//
// Expected schema (created by EnsureTable):
//
//	CREATE TABLE IF NOT EXISTS jobs (
//	    id          TEXT PRIMARY KEY,
//	    kind        TEXT NOT NULL,
//	    bookmark_id INTEGER NOT NULL DEFAULT 0,
//	    visible_at  INTEGER NOT NULL DEFAULT 0,  -- milliseconds since epoch
//	    created_at  INTEGER NOT NULL,             -- milliseconds since epoch
//	    attempts    INTEGER NOT NULL DEFAULT 0
//	);
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names a unit of work. The task package registers a handler per kind.
type Kind string

const (
	KindSync        Kind = "sync"
	KindAutotag     Kind = "autotag"
	KindReadability Kind = "readability"
	KindSummarize   Kind = "summarize"
	KindSearch      Kind = "search"
)

// Job is a row in the queue.
type Job struct {
	ID         string
	Kind       Kind
	BookmarkID int64
	VisibleAt  time.Time
	CreatedAt  time.Time
	Attempts   int
}

// Submitter is the narrow interface tasks use to enqueue work. Tasks never
// see the queue's consumer side.
type Submitter interface {
	Submit(ctx context.Context, kind Kind, bookmarkID int64) error
}

// Options configures queue behaviour.
type Options struct {
	// Visibility is how long a claimed job stays invisible. Default: 60s.
	Visibility time.Duration
	// PollInterval is the delay between claim attempts in the Run loop.
	// Default: 1s.
	PollInterval time.Duration
	// MaxAttempts limits how many times a job can be redelivered before
	// being discarded. 0 means unlimited. Default: 0.
	MaxAttempts int
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 60 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Queue is the dispatcher handle.
type Queue struct {
	db    *sql.DB
	opts  Options
	newID func() string
}

// New creates a queue handle. Call EnsureTable once at startup, then Submit
// and Run as needed.
func New(db *sql.DB, opts Options) *Queue {
	opts.defaults()
	return &Queue{
		db:    db,
		opts:  opts,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// EnsureTable creates the jobs table and index if they don't exist.
func (q *Queue) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			bookmark_id INTEGER NOT NULL DEFAULT 0,
			visible_at  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_visible ON jobs (visible_at);
	`)
	return err
}

// Submit inserts a job that is immediately visible.
func (q *Queue) Submit(ctx context.Context, kind Kind, bookmarkID int64) error {
	now := time.Now().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO jobs (id, kind, bookmark_id, visible_at, created_at) VALUES (?,?,?,?,?)`,
		q.newID(), string(kind), bookmarkID, now, now,
	)
	return err
}

// Claim atomically picks the oldest visible job, marks it invisible for the
// configured visibility duration, and returns it. Returns nil, nil if no job
// is available.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE visible_at <= ?
			ORDER BY visible_at ASC
			LIMIT 1
		)
		RETURNING id, kind, bookmark_id, visible_at, created_at, attempts`,
		hideUntil, now.UnixMilli(),
	)

	return scanJob(row.Scan)
}

// Ack deletes a successfully processed job.
func (q *Queue) Ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return err
}

// Nack makes a job immediately visible again so another consumer can pick it up.
func (q *Queue) Nack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE jobs SET visible_at = 0 WHERE id = ?`, id)
	return err
}

// Extend pushes the visibility timeout forward for a job that needs more
// processing time (heartbeat pattern).
func (q *Queue) Extend(ctx context.Context, id string, extra time.Duration) error {
	hideUntil := time.Now().Add(extra).UnixMilli()
	_, err := q.db.ExecContext(ctx, `UPDATE jobs SET visible_at = ? WHERE id = ?`, hideUntil, id)
	return err
}

// Len returns the total number of jobs (visible + invisible) in the queue.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n)
	return n, err
}

// Handler processes a claimed job. Return nil to ack, non-nil to nack.
type Handler func(ctx context.Context, job *Job) error

// Run polls for visible jobs and processes them with bounded concurrency.
// It blocks until ctx is cancelled, draining in-flight handlers before
// returning.
func (q *Queue) Run(ctx context.Context, maxConcurrency int, handler Handler) {
	log := q.opts.Logger
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	log.Info("dispatch: consumer started",
		"visibility", q.opts.Visibility,
		"poll", q.opts.PollInterval,
		"max_concurrency", maxConcurrency,
	)

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("dispatch: consumer stopping, draining in-flight handlers")
			wg.Wait()
			log.Info("dispatch: consumer stopped")
			return
		case <-ticker.C:
			q.poll(ctx, sem, &wg, handler, log)
		}
	}
}

func (q *Queue) poll(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup, handler Handler, log *slog.Logger) {
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("dispatch: claim failed", "error", err)
			}
			return
		}
		if job == nil {
			return // nothing visible
		}

		// Discard if max attempts exceeded.
		if q.opts.MaxAttempts > 0 && job.Attempts > q.opts.MaxAttempts {
			log.Warn("dispatch: job exceeded max attempts, discarding",
				"id", job.ID, "kind", job.Kind, "bookmark_id", job.BookmarkID, "attempts", job.Attempts)
			_ = q.Ack(ctx, job.ID)
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			_ = q.Nack(ctx, job.ID)
			return
		}

		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := handler(ctx, j); err != nil {
				log.Warn("dispatch: handler failed, nacking",
					"id", j.ID, "kind", j.Kind, "bookmark_id", j.BookmarkID, "error", err)
				_ = q.Nack(context.Background(), j.ID)
			} else {
				_ = q.Ack(context.Background(), j.ID)
			}
		}(job)
	}
}

func scanJob(scan func(...any) error) (*Job, error) {
	var j Job
	var kind string
	var visAt, creAt int64
	err := scan(&j.ID, &kind, &j.BookmarkID, &visAt, &creAt, &j.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.Kind = Kind(kind)
	j.VisibleAt = time.UnixMilli(visAt)
	j.CreatedAt = time.UnixMilli(creAt)
	return &j, nil
}
