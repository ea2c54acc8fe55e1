package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

const taskColumns = `t.id, t.job_id, t.title, t.description, t.status, t.sort_order, t.completed_at, t.created, t.updated`

func (r *SQLiteRepo) CreateTask(ctx context.Context, t *models.JobTask, equipmentIDs []int64) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("task is nil")
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	res, err := tx.ExecContext(ctx, `INSERT INTO job_tasks (job_id, title, description, status, sort_order, completed_at, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.JobID, t.Title, t.Description, string(t.Status), t.Order, nullMillis(t.CompletedAt), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := linkEquipment(ctx, tx, id, equipmentIDs); err != nil {
		return 0, err
	}

	return id, tx.Commit()
}

func (r *SQLiteRepo) GetTask(ctx context.Context, id int64) (*models.JobTask, error) {
	t, err := scanTask(r.conn.QueryRow(ctx, `SELECT `+taskColumns+` FROM job_tasks t WHERE t.id = ?`, id))
	if err != nil || t == nil {
		return t, err
	}

	eq, err := equipmentForTasks(ctx, r.conn.GetConn(), []int64{id})
	if err != nil {
		return nil, err
	}
	t.RequiredEquipment = nonNilEquipment(eq[id])

	return t, nil
}

// ListTasks returns one page of tasks ordered by id with their equipment
// loaded in a single batched query.
func (r *SQLiteRepo) ListTasks(ctx context.Context, f models.TaskFilter, p models.Page) ([]models.JobTask, int64, error) {
	w := taskWhere(f)
	from := ` FROM job_tasks t JOIN jobs j ON j.id = t.job_id`

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*)`+from+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	args := append(append([]any{}, w.args...), p.Size, p.Offset())
	rows, err := tx.QueryContext(ctx, `SELECT `+taskColumns+from+w.String()+` ORDER BY t.id ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	var (
		out []models.JobTask
		ids []int64
	)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, *t)
		ids = append(ids, t.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	eq, err := equipmentForTasks(ctx, tx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].RequiredEquipment = nonNilEquipment(eq[out[i].ID])
	}

	return out, total, tx.Commit()
}

// UpdateTask applies the write only if the guard still holds at write time.
func (r *SQLiteRepo) UpdateTask(ctx context.Context, t *models.JobTask, equipmentIDs []int64, g repository.TaskGuard) (bool, error) {
	if t == nil {
		return false, fmt.Errorf("task is nil")
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	q := `UPDATE job_tasks SET job_id = ?, title = ?, description = ?, status = ?, sort_order = ?, completed_at = ?, updated = ? WHERE id = ?`
	args := []any{t.JobID, t.Title, t.Description, string(t.Status), t.Order, nullMillis(t.CompletedAt), now(), t.ID}
	if g.AssignedTo > 0 {
		q += ` AND job_id IN (SELECT id FROM jobs WHERE assigned_to = ?)`
		args = append(args, g.AssignedTo)
	}

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if equipmentIDs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM job_task_equipment WHERE task_id = ?`, t.ID); err != nil {
			return false, fmt.Errorf("clear task equipment: %w", err)
		}
		if err := linkEquipment(ctx, tx, t.ID, equipmentIDs); err != nil {
			return false, err
		}
	}

	return true, tx.Commit()
}

func (r *SQLiteRepo) DeleteTask(ctx context.Context, id int64) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_task_equipment WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete task equipment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	return tx.Commit()
}

func linkEquipment(ctx context.Context, q querier, taskID int64, equipmentIDs []int64) error {
	for _, eid := range equipmentIDs {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO job_task_equipment (task_id, equipment_id) VALUES (?, ?)`, taskID, eid); err != nil {
			return fmt.Errorf("link equipment %d: %w", eid, err)
		}
	}
	return nil
}

// equipmentForTasks loads the equipment of all taskIDs with one query.
func equipmentForTasks(ctx context.Context, q querier, taskIDs []int64) (map[int64][]models.Equipment, error) {
	out := make(map[int64][]models.Equipment, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `SELECT te.task_id, `+equipmentColumns+` FROM job_task_equipment te JOIN equipment e ON e.id = te.equipment_id WHERE te.task_id IN (`+placeholders(len(taskIDs))+`) ORDER BY te.task_id, e.id`, int64Args(taskIDs)...)
	if err != nil {
		return nil, fmt.Errorf("load task equipment: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID int64
		e, err := scanEquipmentWith(rows, &taskID)
		if err != nil {
			return nil, err
		}
		out[taskID] = append(out[taskID], *e)
	}

	return out, rows.Err()
}

func nonNilEquipment(e []models.Equipment) []models.Equipment {
	if e == nil {
		return []models.Equipment{}
	}
	return e
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func scanTask(s scanner) (*models.JobTask, error) {
	var (
		t         models.JobTask
		status    string
		completed sql.NullInt64
		created   int64
		updated   int64
	)
	if err := s.Scan(&t.ID, &t.JobID, &t.Title, &t.Description, &status, &t.Order, &completed, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	t.Status = models.TaskStatus(status)
	if completed.Valid {
		c := fromMillis(completed.Int64)
		t.CompletedAt = &c
	}
	t.Created = fromMillis(created)
	t.Updated = fromMillis(updated)

	return &t, nil
}
