package jobs_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/garnizeh/fieldops/internal/db/dbtest"
	"github.com/garnizeh/fieldops/internal/jobs"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/repository/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{9, 5 * time.Minute},
		{64, 5 * time.Minute},
	}
	for _, tc := range tests {
		if got := jobs.BackoffDuration(tc.attempt); got != tc.want {
			t.Fatalf("BackoffDuration(%d) = %v want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestEnqueueAndProcess(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	repo := sqlite.New(dbtest.Open(t), logger)

	handled := make(chan struct{}, 1)
	handlers := map[string]jobs.Handler{
		"test": func(ctx context.Context, j *models.BackgroundJob) error {
			handled <- struct{}{}
			return nil
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, logger, 1)
	pool.SetPollInterval(10 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "test", map[string]string{"foo": "bar"}, 10, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-handled:
		// ok
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}
}

func TestFailingJobIsDeadLettered(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	repo := sqlite.New(dbtest.Open(t), logger)

	var calls atomic.Int32
	handlers := map[string]jobs.Handler{
		"fail": func(ctx context.Context, j *models.BackgroundJob) error {
			calls.Add(1)
			return errors.New("boom")
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, logger, 1)
	pool.SetPollInterval(10 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	// one attempt allowed: the first failure dead-letters the job
	if _, err := pool.Enqueue(ctx, "fail", nil, 10, 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := pool.Enqueue(ctx, "unknown", nil, 10, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		failed, _ := repo.CountDeadLetters(ctx, "fail")
		unknown, _ := repo.CountDeadLetters(ctx, "unknown")
		if failed == 1 && unknown == 1 {
			if calls.Load() != 1 {
				t.Fatalf("handler called %d times want 1", calls.Load())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("jobs were not dead-lettered")
}

func TestPanickingHandlerDoesNotKillWorker(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	repo := sqlite.New(dbtest.Open(t), logger)

	handled := make(chan struct{}, 1)
	handlers := map[string]jobs.Handler{
		"panic": func(ctx context.Context, j *models.BackgroundJob) error {
			panic("handler exploded")
		},
		"ok": func(ctx context.Context, j *models.BackgroundJob) error {
			handled <- struct{}{}
			return nil
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, logger, 1)
	pool.SetPollInterval(10 * time.Millisecond)

	// lower priority value is claimed first
	if _, err := pool.Enqueue(ctx, "panic", nil, 1, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := pool.Enqueue(ctx, "ok", nil, 10, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.Start(ctx)
	defer pool.Stop()

	select {
	case <-handled:
	case <-time.After(3 * time.Second):
		t.Fatalf("worker did not survive the panicking handler")
	}

	if dead, _ := repo.CountDeadLetters(ctx, "panic"); dead != 0 {
		t.Fatalf("panicking job must be retried, not dead-lettered")
	}
}

func TestSchedulerEnqueuesOnStart(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	repo := sqlite.New(dbtest.Open(t), logger)

	s := jobs.NewScheduler(repo, "tick", time.Hour, logger)
	s.Start(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := repo.PendingJobs(ctx, "tick"); n == 1 {
			s.Stop()
			s.Stop()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()
	t.Fatalf("scheduler did not enqueue a job")
}
