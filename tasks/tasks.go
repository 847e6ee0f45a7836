// Package tasks implements the enrichment pipeline: the sync sweep that
// detects unseen bookmarks and the per-bookmark tasks (autotag, readability,
// summarize, search) it fans out.
//
// Cross-task ordering is never expressed through direct calls. Each task
// checks its own event-log guard before acting, and a task that changes what
// downstream tasks would see declares follow-up submissions via followUps.
// The job queue may run any two tasks concurrently, including two attempts
// of the same task for the same bookmark; the guards bound the duplication
// that can result, they do not eliminate it.
package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshmcarthur/linkding-companion/dispatch"
	"github.com/joshmcarthur/linkding-companion/eventlog"
	"github.com/joshmcarthur/linkding-companion/linkding"
	"github.com/joshmcarthur/linkding-companion/llm"
	"github.com/joshmcarthur/linkding-companion/readability"
	"github.com/joshmcarthur/linkding-companion/websearch"
)

// Extractor produces readable text for a URL.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (*readability.Result, error)
}

// Searcher resolves a query to ranked web results. A disabled Searcher turns
// the search task into a silent no-op.
type Searcher interface {
	Enabled() bool
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// Config tunes pipeline behavior.
type Config struct {
	// SearchInFirstWave submits the search task during the sync sweep in
	// addition to the manual HTTP trigger.
	SearchInFirstWave bool
	// NoSummarizeAfterSearch drops the summarize follow-up from a resolved
	// search. The default pipeline re-summarizes the destination page.
	NoSummarizeAfterSearch bool
	// SummaryMaxChars caps the content sent to the summarize prompt.
	// Default: 4000.
	SummaryMaxChars int
}

func (c *Config) defaults() {
	if c.SummaryMaxChars <= 0 {
		c.SummaryMaxChars = 4000
	}
}

// Deps are the collaborators every task runs against. All of them are
// constructed once at process start and shared across workers.
type Deps struct {
	Linkding  *linkding.Client
	Events    *eventlog.Store
	Queue     dispatch.Submitter
	Chat      llm.Chat
	Extractor Extractor
	Searcher  Searcher
	Logger    *slog.Logger
}

// Tasks executes enrichment jobs.
type Tasks struct {
	config    Config
	linkding  *linkding.Client
	events    *eventlog.Store
	queue     dispatch.Submitter
	chat      llm.Chat
	extractor Extractor
	searcher  Searcher
	logger    *slog.Logger
}

// New creates a Tasks from its collaborators.
func New(deps Deps, cfg Config) *Tasks {
	cfg.defaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{
		config:    cfg,
		linkding:  deps.Linkding,
		events:    deps.Events,
		queue:     deps.Queue,
		chat:      deps.Chat,
		extractor: deps.Extractor,
		searcher:  deps.Searcher,
		logger:    logger.With("component", "tasks"),
	}
}

// Handle routes a claimed job to its task. Bound to the queue's Run loop.
func (t *Tasks) Handle(ctx context.Context, job *dispatch.Job) error {
	switch job.Kind {
	case dispatch.KindSync:
		return t.Sync(ctx)
	case dispatch.KindAutotag:
		return t.Autotag(ctx, job.BookmarkID)
	case dispatch.KindReadability:
		return t.Readability(ctx, job.BookmarkID)
	case dispatch.KindSummarize:
		return t.Summarize(ctx, job.BookmarkID)
	case dispatch.KindSearch:
		return t.Search(ctx, job.BookmarkID)
	}
	return fmt.Errorf("tasks: unknown job kind %q", job.Kind)
}

// firstWave lists the tasks submitted for every newly observed bookmark.
// Summarize is reachable only through the readability follow-up so it never
// runs before there is content to summarize.
func (t *Tasks) firstWave() []dispatch.Kind {
	kinds := []dispatch.Kind{dispatch.KindAutotag, dispatch.KindReadability}
	if t.config.SearchInFirstWave {
		kinds = append(kinds, dispatch.KindSearch)
	}
	return kinds
}

// followUps declares the tasks scheduled after a successful completion of
// kind. Search invalidates the bookmark's URL and content, so everything
// that read them runs again.
func (t *Tasks) followUps(kind dispatch.Kind) []dispatch.Kind {
	switch kind {
	case dispatch.KindReadability:
		return []dispatch.Kind{dispatch.KindSummarize}
	case dispatch.KindSearch:
		next := []dispatch.Kind{dispatch.KindAutotag, dispatch.KindReadability}
		if !t.config.NoSummarizeAfterSearch {
			next = append(next, dispatch.KindSummarize)
		}
		return next
	}
	return nil
}

func (t *Tasks) submitFollowUps(ctx context.Context, kind dispatch.Kind, bookmarkID int64) error {
	for _, next := range t.followUps(kind) {
		if err := t.queue.Submit(ctx, next, bookmarkID); err != nil {
			return fmt.Errorf("tasks: submit %s follow-up of %s: %w", next, kind, err)
		}
	}
	return nil
}

// seen reports whether action has already been recorded for the bookmark.
func (t *Tasks) seen(ctx context.Context, bookmarkID int64, action eventlog.Action) (bool, error) {
	done, err := t.events.Exists(ctx, bookmarkID, action)
	if err != nil {
		return false, fmt.Errorf("tasks: check %s event: %w", action, err)
	}
	return done, nil
}
