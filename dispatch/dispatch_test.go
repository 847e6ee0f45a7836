package dispatch_test

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joshmcarthur/linkding-companion/dbopen"
	"github.com/joshmcarthur/linkding-companion/dispatch"
)

func newQueue(t *testing.T, opts dispatch.Options) (*dispatch.Queue, *sql.DB) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	q := dispatch.New(db, opts)
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatal(err)
	}
	return q, db
}

func TestSubmitAndClaim(t *testing.T) {
	q, _ := newQueue(t, dispatch.Options{Visibility: time.Second})
	ctx := context.Background()

	if err := q.Submit(ctx, dispatch.KindAutotag, 42); err != nil {
		t.Fatal(err)
	}

	job, err := q.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil {
		t.Fatal("expected a job")
	}
	if job.Kind != dispatch.KindAutotag {
		t.Fatalf("kind = %q, want autotag", job.Kind)
	}
	if job.BookmarkID != 42 {
		t.Fatalf("bookmark_id = %d, want 42", job.BookmarkID)
	}
	if job.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", job.Attempts)
	}

	// Second claim returns nil — job is invisible.
	job2, err := q.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job2 != nil {
		t.Fatal("expected nil, job should be invisible")
	}
}

func TestAck(t *testing.T) {
	q, _ := newQueue(t, dispatch.Options{Visibility: time.Second})
	ctx := context.Background()

	q.Submit(ctx, dispatch.KindSync, 0)
	job, _ := q.Claim(ctx)
	if err := q.Ack(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	n, _ := q.Len(ctx)
	if n != 0 {
		t.Fatalf("queue should be empty after ack, got %d", n)
	}
}

func TestNack(t *testing.T) {
	q, _ := newQueue(t, dispatch.Options{Visibility: 10 * time.Second})
	ctx := context.Background()

	q.Submit(ctx, dispatch.KindReadability, 7)
	job, _ := q.Claim(ctx)

	if err := q.Nack(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	job2, err := q.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job2 == nil {
		t.Fatal("expected job after nack")
	}
	if job2.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", job2.Attempts)
	}
}

func TestVisibilityTimeout(t *testing.T) {
	q, _ := newQueue(t, dispatch.Options{Visibility: 50 * time.Millisecond})
	ctx := context.Background()

	q.Submit(ctx, dispatch.KindSummarize, 1)
	q.Claim(ctx) // claimed, invisible for 50ms

	if job, _ := q.Claim(ctx); job != nil {
		t.Fatal("job should still be invisible")
	}

	time.Sleep(80 * time.Millisecond)

	job, err := q.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil {
		t.Fatal("job should reappear after visibility timeout")
	}
	if job.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", job.Attempts)
	}
}

func TestClaimOldestFirst(t *testing.T) {
	q, _ := newQueue(t, dispatch.Options{Visibility: time.Second})
	ctx := context.Background()

	q.Submit(ctx, dispatch.KindAutotag, 1)
	time.Sleep(5 * time.Millisecond)
	q.Submit(ctx, dispatch.KindAutotag, 2)

	job, _ := q.Claim(ctx)
	if job.BookmarkID != 1 {
		t.Fatalf("claimed bookmark %d first, want 1", job.BookmarkID)
	}
}

func TestRunProcessesAndAcks(t *testing.T) {
	q, _ := newQueue(t, dispatch.Options{
		Visibility:   time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Submit(ctx, dispatch.KindAutotag, 1)
	q.Submit(ctx, dispatch.KindReadability, 1)

	var processed atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx, 2, func(ctx context.Context, job *dispatch.Job) error {
			processed.Add(1)
			return nil
		})
	}()

	deadline := time.After(2 * time.Second)
	for processed.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("processed %d jobs, want 2", processed.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	n, _ := q.Len(context.Background())
	if n != 0 {
		t.Fatalf("queue not drained: %d", n)
	}
}

func TestRunNacksFailedJobs(t *testing.T) {
	q, _ := newQueue(t, dispatch.Options{
		Visibility:   time.Second,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  2,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Submit(ctx, dispatch.KindSearch, 9)

	var attempts atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx, 1, func(ctx context.Context, job *dispatch.Job) error {
			attempts.Add(1)
			return errors.New("always fails")
		})
	}()

	// With MaxAttempts 2 the job runs twice, then the third delivery is
	// discarded without invoking the handler.
	deadline := time.After(2 * time.Second)
	for {
		n, _ := q.Len(context.Background())
		if n == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never discarded, attempts = %d", attempts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := attempts.Load(); got != 2 {
		t.Fatalf("handler ran %d times, want 2", got)
	}
}
