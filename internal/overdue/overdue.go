// Package overdue flags unfinished jobs whose scheduled date has passed.
package overdue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/fieldops/internal/jobs"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

// JobType is the background job type that runs the flagger.
const JobType = "jobs.flag_overdue"

type Flagger struct {
	repo   repository.OverdueRepo
	logger *slog.Logger
	now    func() time.Time
}

func NewFlagger(repo repository.OverdueRepo, logger *slog.Logger) *Flagger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flagger{repo: repo, logger: logger, now: time.Now}
}

// SetClock replaces the time source. Used by tests and the CLI's --at flag.
func (f *Flagger) SetClock(now func() time.Time) {
	if now != nil {
		f.now = now
	}
}

// Run flags every PENDING or IN_PROGRESS job scheduled before now and returns
// how many were flagged. Running it again without new past-due jobs flags 0.
func (f *Flagger) Run(ctx context.Context) (int64, error) {
	at := f.now().UTC()
	n, err := f.repo.FlagOverdue(ctx, at)
	if err != nil {
		return 0, fmt.Errorf("flag overdue jobs: %w", err)
	}

	f.logger.Info("overdue sweep finished", "flagged", n, "at", at)
	return n, nil
}

// Handler adapts Run to the background worker pool.
func (f *Flagger) Handler() jobs.Handler {
	return func(ctx context.Context, j *models.BackgroundJob) error {
		_, err := f.Run(ctx)
		return err
	}
}
