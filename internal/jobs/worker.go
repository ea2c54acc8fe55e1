// small contract description
// inputs: background_jobs rows, handlers map
// outputs: job status updates, dead-letter moves on permanent failure
// error modes: db errors, handler errors
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

const (
	defaultPollInterval  = 500 * time.Millisecond
	defaultErrorInterval = time.Second
)

type WorkerPool struct {
	repo         repository.BackgroundJobRepo
	handlers     map[string]Handler
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo repository.BackgroundJobRepo, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		repo:         repo,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: defaultPollInterval,
		stop:         make(chan struct{}),
	}
}

// SetPollInterval changes how long an idle worker waits before polling again.
// It must be called before Start.
func (p *WorkerPool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them. It is safe to call more
// than once.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// sleep waits for d and reports false if the pool is stopping.
func (p *WorkerPool) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.repo.ClaimNext(ctx)
		if err != nil {
			p.logger.Error("claim job", "err", err)
			if !p.sleep(ctx, defaultErrorInterval) {
				return
			}
			continue
		}
		if job == nil {
			// nothing to do
			if !p.sleep(ctx, p.pollInterval) {
				return
			}
			continue
		}

		p.process(ctx, job)
	}
}

func (p *WorkerPool) process(ctx context.Context, job *models.BackgroundJob) {
	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = "failed"
		job.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, job); err != nil {
			p.logger.Error("move to dead letter", "job_id", job.ID, "err", err)
		}
		return
	}

	err := p.run(ctx, h, job)
	if err == nil {
		job.Status = "done"
		if upErr := p.repo.UpdateBackgroundJob(ctx, job); upErr != nil {
			p.logger.Error("mark job done", "job_id", job.ID, "err", upErr)
		}
		return
	}

	// handler returned error
	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = "failed"
		p.logger.Warn("job exhausted attempts", "job_id", job.ID, "type", job.Type, "err", fmt.Errorf("%w: %v", ErrMaxAttempts, err))
		if mvErr := p.repo.MoveToDeadLetter(ctx, job); mvErr != nil {
			p.logger.Error("move to dead letter", "job_id", job.ID, "err", mvErr)
		}
		return
	}

	// schedule retry with backoff
	t := time.Now().Add(BackoffDuration(job.Attempts))
	job.NextTryAt = &t
	job.Status = "retry"
	if upErr := p.repo.UpdateBackgroundJob(ctx, job); upErr != nil {
		p.logger.Error("update job for retry", "job_id", job.ID, "err", upErr)
	}
}

// run calls h and turns a handler panic into an error.
func (p *WorkerPool) run(ctx context.Context, h Handler, job *models.BackgroundJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	return Enqueue(ctx, p.repo, typ, payload, priority, maxAttempts)
}

// Enqueue stores a job of type typ that any running pool may claim.
func Enqueue(ctx context.Context, repo repository.BackgroundJobRepo, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	j := &models.BackgroundJob{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return repo.Enqueue(ctx, j)
}
