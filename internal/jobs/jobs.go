package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/fieldops/internal/models"
)

// Handler is the function that processes a job
type Handler func(ctx context.Context, j *models.BackgroundJob) error

// ErrMaxAttempts indicates the job reached max attempts
var ErrMaxAttempts = errors.New("max attempts reached")

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	// simple exponential: base 2^attempt seconds, capped
	max := 5 * time.Minute
	if attempt > 16 {
		return max
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > max {
		return max
	}
	return d
}
