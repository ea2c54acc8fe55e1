package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/fieldops/internal/models"
)

const equipmentColumns = `e.id, e.name, e.type, e.serial_number, e.is_active, e.created, e.updated`

func (r *SQLiteRepo) CreateEquipment(ctx context.Context, e *models.Equipment) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("equipment is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO equipment (name, type, serial_number, is_active, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Name, e.Type, e.SerialNumber, boolInt(e.IsActive), ts, ts)
	if err != nil {
		return 0, duplicate(err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	return scanEquipment(r.conn.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment e WHERE e.id = ?`, id))
}

func (r *SQLiteRepo) GetEquipmentBySerial(ctx context.Context, serial string) (*models.Equipment, error) {
	return scanEquipment(r.conn.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment e WHERE e.serial_number = ?`, serial))
}

func (r *SQLiteRepo) ListEquipment(ctx context.Context, f models.EquipmentFilter, p models.Page) ([]models.Equipment, int64, error) {
	w := equipmentWhere(f)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment e`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count equipment: %w", err)
	}

	args := append(append([]any{}, w.args...), p.Size, p.Offset())
	rows, err := tx.QueryContext(ctx, `SELECT `+equipmentColumns+` FROM equipment e`+w.String()+` ORDER BY e.id ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list equipment: %w", err)
	}
	defer rows.Close()

	var out []models.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, tx.Commit()
}

func (r *SQLiteRepo) MissingEquipment(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT id FROM equipment WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *SQLiteRepo) UpdateEquipment(ctx context.Context, e *models.Equipment) error {
	if e == nil {
		return fmt.Errorf("equipment is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE equipment SET name = ?, type = ?, serial_number = ?, is_active = ?, updated = ? WHERE id = ?`,
		e.Name, e.Type, e.SerialNumber, boolInt(e.IsActive), now(), e.ID)
	return duplicate(err)
}

// DeleteEquipment removes the equipment and its task links; tasks are kept.
func (r *SQLiteRepo) DeleteEquipment(ctx context.Context, id int64) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_task_equipment WHERE equipment_id = ?`, id); err != nil {
		return fmt.Errorf("unlink equipment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete equipment: %w", err)
	}

	return tx.Commit()
}

func scanEquipment(s scanner) (*models.Equipment, error) {
	return scanEquipmentWith(s)
}

// scanEquipmentWith scans lead columns into lead before the equipment columns.
func scanEquipmentWith(s scanner, lead ...any) (*models.Equipment, error) {
	var (
		e       models.Equipment
		active  int
		created int64
		updated int64
	)
	dest := append(lead, &e.ID, &e.Name, &e.Type, &e.SerialNumber, &active, &created, &updated)
	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	e.IsActive = active != 0
	e.Created = fromMillis(created)
	e.Updated = fromMillis(updated)

	return &e, nil
}
