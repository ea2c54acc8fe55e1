package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/fieldops/pkg/repository"
)

// Scheduler enqueues a job of a fixed type every interval. The job itself
// runs on the worker pool, so a slow handler never delays the next tick.
type Scheduler struct {
	repo     repository.BackgroundJobRepo
	logger   *slog.Logger
	jobType  string
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewScheduler(repo repository.BackgroundJobRepo, jobType string, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		repo:     repo,
		logger:   logger,
		jobType:  jobType,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start enqueues one job immediately and then one per interval until Stop
// is called or ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		s.tick(ctx)

		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop halts the ticker and waits for the loop to exit. Start must have
// been called.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Scheduler) tick(ctx context.Context) {
	id, err := Enqueue(ctx, s.repo, s.jobType, struct{}{}, 10, 3)
	if err != nil {
		s.logger.Error("schedule job", "type", s.jobType, "err", err)
		return
	}
	s.logger.Debug("scheduled job", "type", s.jobType, "job_id", id)
}
