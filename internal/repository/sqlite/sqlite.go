package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/fieldops/internal/db"
	"github.com/garnizeh/fieldops/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.UserRepo = (*SQLiteRepo)(nil)
var _ repository.JobRepo = (*SQLiteRepo)(nil)
var _ repository.TaskRepo = (*SQLiteRepo)(nil)
var _ repository.EquipmentRepo = (*SQLiteRepo)(nil)
var _ repository.DashboardRepo = (*SQLiteRepo)(nil)
var _ repository.OverdueRepo = (*SQLiteRepo)(nil)
var _ repository.BackgroundJobRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

// Repository returns the domain repositories backed by r.
func (r *SQLiteRepo) Repository() *repository.Repository {
	return &repository.Repository{
		Users:     r,
		Jobs:      r,
		Tasks:     r,
		Equipment: r,
		Dashboard: r,
		Overdue:   r,
	}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// duplicate maps a unique-constraint failure to repository.ErrDuplicate.
func duplicate(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}
