package overdue_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/garnizeh/fieldops/internal/db/dbtest"
	"github.com/garnizeh/fieldops/internal/jobs"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/overdue"
	"github.com/garnizeh/fieldops/internal/repository/sqlite"
	"github.com/garnizeh/fieldops/pkg/repository/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *sqlite.SQLiteRepo) map[string]int64 {
	t.Helper()
	ctx := context.Background()

	admin, err := repo.CreateUser(ctx, &models.User{Username: "admin1", PasswordHash: "x", Role: models.RoleAdmin, IsActive: true})
	require.NoError(t, err)
	tech, err := repo.CreateUser(ctx, &models.User{Username: "tech1", PasswordHash: "x", Role: models.RoleTechnician, IsActive: true})
	require.NoError(t, err)

	fixtures := map[string]struct {
		at     time.Time
		status models.JobStatus
	}{
		"late pending":   {now.Add(-24 * time.Hour), models.JobPending},
		"late started":   {now.Add(-time.Minute), models.JobInProgress},
		"late completed": {now.Add(-24 * time.Hour), models.JobCompleted},
		"upcoming":       {now.Add(24 * time.Hour), models.JobPending},
	}
	ids := map[string]int64{}
	for title, j := range fixtures {
		id, err := repo.CreateJob(ctx, &models.Job{
			Title: title, ClientName: "ACME", CreatedBy: admin, AssignedTo: tech,
			Status: j.status, Priority: models.PriorityMedium, ScheduledDate: j.at,
		})
		require.NoError(t, err)
		ids[title] = id
	}
	return ids
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.New(dbtest.Open(t), nil)
	ids := seed(t, repo)

	f := overdue.NewFlagger(repo, slog.New(slog.DiscardHandler))
	f.SetClock(func() time.Time { return now })

	n, err := f.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	want := map[string]bool{"late pending": true, "late started": true, "late completed": false, "upcoming": false}
	for title, flagged := range want {
		j, err := repo.GetJob(ctx, ids[title])
		require.NoError(t, err)
		assert.Equal(t, flagged, j.Overdue, title)
	}

	n, err = f.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run must flag nothing")
}

func TestOverdueIsNeverCleared(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.New(dbtest.Open(t), nil)
	ids := seed(t, repo)

	f := overdue.NewFlagger(repo, slog.New(slog.DiscardHandler))
	f.SetClock(func() time.Time { return now })
	_, err := f.Run(ctx)
	require.NoError(t, err)

	j, err := repo.GetJob(ctx, ids["late pending"])
	require.NoError(t, err)
	j.Status = models.JobCompleted
	j.ScheduledDate = now.Add(48 * time.Hour)
	require.NoError(t, repo.UpdateJob(ctx, j))

	_, err = f.Run(ctx)
	require.NoError(t, err)
	j, err = repo.GetJob(ctx, ids["late pending"])
	require.NoError(t, err)
	assert.True(t, j.Overdue)
}

func TestRunError(t *testing.T) {
	m := mock.NewMocks()
	m.Overdue.Err = errors.New("database is locked")
	f := overdue.NewFlagger(m.Overdue, slog.New(slog.DiscardHandler))
	f.SetClock(func() time.Time { return now.In(time.FixedZone("BRT", -3*3600)) })

	_, err := f.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	require.Len(t, m.Overdue.Calls, 1)
	assert.Equal(t, time.UTC, m.Overdue.Calls[0].Location())
	assert.True(t, now.Equal(m.Overdue.Calls[0]))
}

func TestHandlerOnWorkerPool(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	repo := sqlite.New(dbtest.Open(t), logger)
	ids := seed(t, repo)

	f := overdue.NewFlagger(repo, logger)
	f.SetClock(func() time.Time { return now })

	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{overdue.JobType: f.Handler()}, logger, 2)
	pool.SetPollInterval(10 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	_, err := pool.Enqueue(ctx, overdue.JobType, struct{}{}, 10, 3)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := repo.GetJob(ctx, ids["late pending"])
		return err == nil && j.Overdue
	}, 3*time.Second, 10*time.Millisecond)
}
