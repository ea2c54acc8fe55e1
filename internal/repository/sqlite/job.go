package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/fieldops/internal/models"
)

const jobColumns = `j.id, j.title, j.description, j.client_name, j.created_by, j.assigned_to, j.status, j.priority, j.scheduled_date, j.overdue, j.created, j.updated`

func (r *SQLiteRepo) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO jobs (title, description, client_name, created_by, assigned_to, status, priority, scheduled_date, overdue, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.Title, j.Description, j.ClientName, j.CreatedBy, j.AssignedTo, string(j.Status), string(j.Priority), toMillis(j.ScheduledDate), boolInt(j.Overdue), ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	return scanJob(r.conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = ?`, id))
}

// ListJobs returns one page of jobs ordered by id and the total match count.
// Both are read in the same transaction.
func (r *SQLiteRepo) ListJobs(ctx context.Context, f models.JobFilter, p models.Page) ([]models.Job, int64, error) {
	w := jobWhere(f)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs j`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	args := append(append([]any{}, w.args...), p.Size, p.Offset())
	rows, err := tx.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs j`+w.String()+` ORDER BY j.id ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, tx.Commit()
}

func (r *SQLiteRepo) UpdateJob(ctx context.Context, j *models.Job) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE jobs SET title = ?, description = ?, client_name = ?, assigned_to = ?, status = ?, priority = ?, scheduled_date = ?, updated = ? WHERE id = ?`,
		j.Title, j.Description, j.ClientName, j.AssignedTo, string(j.Status), string(j.Priority), toMillis(j.ScheduledDate), now(), j.ID)
	return err
}

// DeleteJob removes the job, its tasks and their equipment links atomically.
func (r *SQLiteRepo) DeleteJob(ctx context.Context, id int64) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_task_equipment WHERE task_id IN (SELECT id FROM job_tasks WHERE job_id = ?)`, id); err != nil {
		return fmt.Errorf("delete task equipment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_tasks WHERE job_id = ?`, id); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	return tx.Commit()
}

func scanJob(s scanner) (*models.Job, error) {
	var (
		j         models.Job
		status    string
		priority  string
		scheduled int64
		overdue   int
		created   int64
		updated   int64
	)
	if err := s.Scan(&j.ID, &j.Title, &j.Description, &j.ClientName, &j.CreatedBy, &j.AssignedTo, &status, &priority, &scheduled, &overdue, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	j.Status = models.JobStatus(status)
	j.Priority = models.Priority(priority)
	j.ScheduledDate = fromMillis(scheduled)
	j.Overdue = overdue != 0
	j.Created = fromMillis(created)
	j.Updated = fromMillis(updated)

	return &j, nil
}
