package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/fieldops/internal/models"
)

// Enqueue inserts a job into the background_jobs table and returns the new ID
func (r *SQLiteRepo) Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("background job is nil")
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now()
	}

	ts := now()
	q := `INSERT INTO background_jobs(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?)`
	res, err := r.conn.Exec(ctx, q, j.Type, string(j.Payload), "queued", j.Attempts, j.MaxAttempts, j.Priority, toMillis(j.ScheduledAt), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}

	return res.LastInsertId()
}

// ClaimNext marks the next runnable job as running and returns it. The
// select and the status change are one statement, so two workers never
// claim the same row.
func (r *SQLiteRepo) ClaimNext(ctx context.Context) (*models.BackgroundJob, error) {
	ts := now()
	q := `UPDATE background_jobs SET status = 'running', updated = ?
		WHERE id = (
			SELECT id FROM background_jobs
			WHERE (status = 'queued' OR status = 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ?
			ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1
		)
		RETURNING id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`
	row := r.conn.QueryRow(ctx, q, ts, ts, ts)

	var (
		j           models.BackgroundJob
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("claim next job: %w", err)
	}

	j.ScheduledAt = fromMillis(scheduledAt)
	j.Created = fromMillis(created)
	j.Updated = fromMillis(updated)
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		t := fromMillis(nextTry.Int64)
		j.NextTryAt = &t
	}
	if lastError.Valid {
		j.LastError = lastError.String
	}

	return &j, nil
}

// UpdateBackgroundJob updates attempts, status, next_try_at, last_error
func (r *SQLiteRepo) UpdateBackgroundJob(ctx context.Context, j *models.BackgroundJob) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = toMillis(*j.NextTryAt)
	}
	q := `UPDATE background_jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.conn.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, now(), j.ID)

	return err
}

// MoveToDeadLetter moves a job to dead_letter_jobs and deletes the original
func (r *SQLiteRepo) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insert := `INSERT INTO dead_letter_jobs(job_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, insert, j.ID, j.Type, string(j.Payload), j.Attempts, j.LastError, now()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM background_jobs WHERE id = ?`, j.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// CountDeadLetters returns the number of dead-lettered jobs of type typ.
func (r *SQLiteRepo) CountDeadLetters(ctx context.Context, typ string) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_jobs WHERE type = ?`, typ).Scan(&n)
	return n, err
}

// PendingJobs returns the number of queued or retrying jobs of type typ.
func (r *SQLiteRepo) PendingJobs(ctx context.Context, typ string) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM background_jobs WHERE type = ? AND status IN ('queued', 'retry', 'running')`, typ).Scan(&n)
	return n, err
}
