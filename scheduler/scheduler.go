// Package scheduler submits the sync sweep to the job queue on a fixed
// interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/joshmcarthur/linkding-companion/dispatch"
)

// Options configures the scheduler.
type Options struct {
	// Interval between sweep submissions. Default: 15m.
	Interval time.Duration
	// Logger for scheduler events. Default: slog.Default().
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 15 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Scheduler periodically enqueues a sync job. The sweep itself runs on the
// queue's workers like any other job, so a slow sweep never blocks the
// scheduler and a crashed sweep is retried by the queue, not here.
type Scheduler struct {
	queue  dispatch.Submitter
	opts   Options
	logger *slog.Logger
}

// New creates a Scheduler.
func New(queue dispatch.Submitter, opts Options) *Scheduler {
	opts.defaults()
	return &Scheduler{
		queue:  queue,
		opts:   opts,
		logger: opts.Logger.With("component", "scheduler"),
	}
}

// Run submits one sync job immediately, then one per interval until ctx is
// canceled. Submission failures are logged and the next tick tries again.
func (s *Scheduler) Run(ctx context.Context) {
	s.submit(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.submit(ctx)
		}
	}
}

func (s *Scheduler) submit(ctx context.Context) {
	if err := s.queue.Submit(ctx, dispatch.KindSync, 0); err != nil {
		s.logger.Error("sync submission failed", "error", err)
		return
	}
	s.logger.Debug("sync submitted")
}
