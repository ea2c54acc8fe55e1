package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/fieldops/internal/models"
)

const userColumns = `id, username, email, password_hash, role, is_active, created, updated`

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO users (username, email, password_hash, role, is_active, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), boolInt(u.IsActive), ts, ts)
	if err != nil {
		return 0, duplicate(err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *SQLiteRepo) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := r.conn.Exec(ctx, `UPDATE users SET is_active = ?, updated = ? WHERE id = ?`, boolInt(active), now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user active rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, sql.ErrNoRows)
	}

	return nil
}

func (r *SQLiteRepo) CountUsersByRole(ctx context.Context, role models.Role) (int64, error) {
	var cnt int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&cnt); err != nil {
		return 0, err
	}
	return cnt, nil
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u       models.User
		role    string
		active  int
		created int64
		updated int64
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &active, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	u.Role = models.Role(role)
	u.IsActive = active != 0
	u.Created = fromMillis(created)
	u.Updated = fromMillis(updated)

	return &u, nil
}
