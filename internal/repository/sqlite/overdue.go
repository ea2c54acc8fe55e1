package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/garnizeh/fieldops/internal/models"
)

// FlagOverdue sets overdue on every unfinished job scheduled before now with
// a single UPDATE. The status predicate lives in the same statement so a job
// completed concurrently is never flagged.
func (r *SQLiteRepo) FlagOverdue(ctx context.Context, at time.Time) (int64, error) {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE jobs SET overdue = 1, updated = ? WHERE scheduled_date < ? AND status IN (?, ?) AND overdue = 0`,
		now(), toMillis(at), string(models.JobPending), string(models.JobInProgress))
	if err != nil {
		return 0, fmt.Errorf("flag overdue jobs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return n, nil
}
