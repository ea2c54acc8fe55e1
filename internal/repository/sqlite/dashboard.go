package sqlite

import (
	"context"
	"fmt"

	"github.com/garnizeh/fieldops/internal/models"
)

// TechnicianTasks reads the technician's tasks in statuses and the equipment
// of every returned task inside one transaction.
func (r *SQLiteRepo) TechnicianTasks(ctx context.Context, technicianID int64, statuses []models.TaskStatus) ([]models.DashboardTask, map[int64][]models.Equipment, error) {
	if len(statuses) == 0 {
		return nil, map[int64][]models.Equipment{}, nil
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	args := []any{technicianID}
	for _, s := range statuses {
		args = append(args, string(s))
	}

	q := `SELECT ` + taskColumns + `, j.title, j.scheduled_date
		FROM job_tasks t JOIN jobs j ON j.id = t.job_id
		WHERE j.assigned_to = ? AND t.status IN (` + placeholders(len(statuses)) + `)
		ORDER BY j.scheduled_date ASC, t.sort_order ASC, t.id ASC`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query technician tasks: %w", err)
	}

	var (
		out []models.DashboardTask
		ids []int64
	)
	for rows.Next() {
		var (
			dt        models.DashboardTask
			scheduled int64
		)
		t, err := scanTask(rowWithTail{rows, []any{&dt.JobTitle, &scheduled}})
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		dt.Task = *t
		dt.ScheduledDate = fromMillis(scheduled)
		out = append(out, dt)
		ids = append(ids, t.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	eq, err := equipmentForTasks(ctx, tx, ids)
	if err != nil {
		return nil, nil, err
	}

	return out, eq, tx.Commit()
}

// JobProgress lists jobs with total and completed task counts. The count and
// the page are read in one transaction.
func (r *SQLiteRepo) JobProgress(ctx context.Context, f models.JobFilter, p models.Page) ([]models.JobProgress, int64, error) {
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

	q := `SELECT ` + jobColumns + `, COUNT(t.id), COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0)
		FROM jobs j LEFT JOIN job_tasks t ON t.job_id = j.id` + w.String() + `
		GROUP BY j.id ORDER BY j.id ASC LIMIT ? OFFSET ?`
	args := append([]any{string(models.TaskCompleted)}, w.args...)
	args = append(args, p.Size, p.Offset())

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query job progress: %w", err)
	}
	defer rows.Close()

	var out []models.JobProgress
	for rows.Next() {
		var jp models.JobProgress
		j, err := scanJob(rowWithTail{rows, []any{&jp.TaskCount, &jp.CompletedTaskCount}})
		if err != nil {
			return nil, 0, err
		}
		jp.Job = *j
		out = append(out, jp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, tx.Commit()
}

// rowWithTail appends extra destinations after the ones a scan helper passes.
type rowWithTail struct {
	s    scanner
	tail []any
}

func (r rowWithTail) Scan(dest ...any) error {
	return r.s.Scan(append(dest, r.tail...)...)
}
