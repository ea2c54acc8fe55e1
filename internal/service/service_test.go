package service_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/db/dbtest"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/repository/sqlite"
	"github.com/garnizeh/fieldops/internal/service"
	"github.com/garnizeh/fieldops/pkg/repository"
)

type fixture struct {
	svc   *service.Service
	repo  *sqlite.SQLiteRepo
	admin *models.User
	sales *models.User
	tech1 *models.User
	tech2 *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := sqlite.New(dbtest.Open(t), nil)
	f := &fixture{svc: service.New(repo.Repository(), nil), repo: repo}
	f.admin = f.user(t, "admin1", models.RoleAdmin)
	f.sales = f.user(t, "sales1", models.RoleSalesAgent)
	f.tech1 = f.user(t, "tech1", models.RoleTechnician)
	f.tech2 = f.user(t, "tech2", models.RoleTechnician)
	return f
}

func (f *fixture) user(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "x", Role: role, IsActive: true}
	id, err := f.repo.CreateUser(context.Background(), u)
	require.NoError(t, err)
	u.ID = id
	return u
}

func (f *fixture) job(t *testing.T, by, tech *models.User, title string) *models.Job {
	t.Helper()
	when := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	client := "ACME"
	j, err := f.svc.CreateJob(context.Background(), by, service.JobInput{
		Title:         &title,
		ClientName:    &client,
		AssignedTo:    &tech.ID,
		ScheduledDate: &when,
	})
	require.NoError(t, err)
	return j
}

func (f *fixture) task(t *testing.T, j *models.Job, title string, equipment ...int64) *models.JobTask {
	t.Helper()
	in := service.TaskInput{JobID: &j.ID, Title: &title}
	if equipment != nil {
		in.EquipmentIDs = &equipment
	}
	tk, err := f.svc.CreateTask(context.Background(), f.admin, in)
	require.NoError(t, err)
	return tk
}

func ptr[T any](v T) *T { return &v }

func TestCreateJobValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	when := time.Now()

	_, err := f.svc.CreateJob(ctx, f.sales, service.JobInput{Title: ptr("x")})
	v, ok := apperr.IsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "client_name")
	assert.Contains(t, v.Fields, "assigned_to")
	assert.Contains(t, v.Fields, "scheduled_date")

	base := func() service.JobInput {
		return service.JobInput{Title: ptr("Fix"), ClientName: ptr("ACME"), AssignedTo: &f.tech1.ID, ScheduledDate: &when}
	}

	in := base()
	in.AssignedTo = ptr(int64(9999))
	_, err = f.svc.CreateJob(ctx, f.admin, in)
	v, ok = apperr.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{`Invalid pk "9999" - object does not exist.`}, v.Fields["assigned_to"])

	in = base()
	in.AssignedTo = &f.sales.ID
	_, err = f.svc.CreateJob(ctx, f.admin, in)
	v, ok = apperr.IsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "assigned_to")

	in = base()
	in.Priority = ptr(models.Priority("URGENT"))
	_, err = f.svc.CreateJob(ctx, f.admin, in)
	_, ok = apperr.IsValidation(err)
	require.True(t, ok)

	// lengths are counted in characters, not bytes
	in = base()
	in.Title = ptr(strings.Repeat("修", 200))
	_, err = f.svc.CreateJob(ctx, f.admin, in)
	require.NoError(t, err)

	in.Title = ptr(strings.Repeat("修", 201))
	_, err = f.svc.CreateJob(ctx, f.admin, in)
	v, ok = apperr.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{"Ensure this field has no more than 200 characters."}, v.Fields["title"])

	j, err := f.svc.CreateJob(ctx, f.sales, base())
	require.NoError(t, err)
	assert.Equal(t, f.sales.ID, j.CreatedBy)
	assert.Equal(t, models.JobPending, j.Status)
	assert.Equal(t, models.PriorityMedium, j.Priority)
	assert.False(t, j.Overdue)

	_, err = f.svc.CreateJob(ctx, f.tech1, base())
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestTechnicianSeesOnlyOwnJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own := f.job(t, f.admin, f.tech1, "own")
	foreign := f.job(t, f.admin, f.tech2, "foreign")

	res, err := f.svc.ListJobs(ctx, f.tech1, models.JobFilter{AssignedTo: f.tech2.ID}, models.Page{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, own.ID, res.Results[0].ID)
	assert.EqualValues(t, 1, res.Count)

	res, err = f.svc.ListJobs(ctx, f.sales, models.JobFilter{}, models.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Count)

	_, err = f.svc.GetJob(ctx, f.tech1, foreign.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := f.svc.GetJob(ctx, f.tech1, own.ID)
	require.NoError(t, err)
	assert.Equal(t, "own", got.Title)

	_, err = f.svc.UpdateJob(ctx, f.tech1, own.ID, service.JobInput{Title: ptr("mine now")})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.UpdateJob(ctx, f.sales, own.ID, service.JobInput{Title: ptr("nope")})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	require.ErrorIs(t, f.svc.DeleteJob(ctx, f.sales, own.ID), apperr.ErrForbidden)
}

func TestUpdateJobReassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j := f.job(t, f.admin, f.tech1, "move me")

	_, err := f.svc.UpdateJob(ctx, f.admin, j.ID, service.JobInput{AssignedTo: &f.admin.ID})
	_, ok := apperr.IsValidation(err)
	require.True(t, ok, "admin is not a valid assignee")

	got, err := f.svc.UpdateJob(ctx, f.admin, j.ID, service.JobInput{AssignedTo: &f.tech2.ID, Status: ptr(models.JobInProgress)})
	require.NoError(t, err)
	assert.Equal(t, f.tech2.ID, got.AssignedTo)
	assert.Equal(t, models.JobInProgress, got.Status)
	assert.Equal(t, "move me", got.Title)

	_, err = f.svc.UpdateJob(ctx, f.admin, 9999, service.JobInput{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTechnicianCannotUpdateOthersTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := f.task(t, f.job(t, f.admin, f.tech2, "theirs"), "their task")
	ownJob := f.job(t, f.admin, f.tech1, "mine")
	own := f.task(t, ownJob, "my task")

	_, err := f.svc.UpdateTask(ctx, f.tech1, foreign.ID, service.TaskInput{Status: ptr(models.TaskCompleted)})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	after, err := f.svc.GetTask(ctx, f.admin, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, after.Status)

	_, err = f.svc.GetTask(ctx, f.tech1, foreign.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	otherJob := f.job(t, f.admin, f.tech1, "also mine")
	_, err = f.svc.UpdateTask(ctx, f.tech1, own.ID, service.TaskInput{JobID: &otherJob.ID})
	require.ErrorIs(t, err, apperr.ErrForbidden, "technicians may not move tasks between jobs")

	done, err := f.svc.UpdateTask(ctx, f.tech1, own.ID, service.TaskInput{Status: ptr(models.TaskCompleted)})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	reopened, err := f.svc.UpdateTask(ctx, f.tech1, own.ID, service.TaskInput{Status: ptr(models.TaskInProgress)})
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)

	_, err = f.svc.CreateTask(ctx, f.tech1, service.TaskInput{JobID: &ownJob.ID, Title: ptr("x")})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	require.ErrorIs(t, f.svc.DeleteTask(ctx, f.tech1, own.ID), apperr.ErrForbidden)
	_, err = f.svc.UpdateTask(ctx, f.sales, own.ID, service.TaskInput{Title: ptr("x")})
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

// racingTasks runs before ahead of every task write, standing in for a
// request that lands between the service's read and its write.
type racingTasks struct {
	repository.TaskRepo
	before func()
}

func (r racingTasks) UpdateTask(ctx context.Context, t *models.JobTask, equipmentIDs []int64, g repository.TaskGuard) (bool, error) {
	r.before()
	return r.TaskRepo.UpdateTask(ctx, t, equipmentIDs, g)
}

func TestUpdateTaskLosesRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deleted := f.task(t, f.job(t, f.admin, f.tech1, "deleted"), "gone soon")
	reassignedJob := f.job(t, f.admin, f.tech1, "reassigned")
	reassigned := f.task(t, reassignedJob, "moves to tech2")

	tests := []struct {
		name   string
		user   *models.User
		taskID int64
		before func(t *testing.T)
		want   error
	}{
		{
			name:   "admin update after delete",
			user:   f.admin,
			taskID: deleted.ID,
			before: func(t *testing.T) { require.NoError(t, f.repo.DeleteTask(ctx, deleted.ID)) },
			want:   apperr.ErrNotFound,
		},
		{
			name:   "technician update after reassignment",
			user:   f.tech1,
			taskID: reassigned.ID,
			before: func(t *testing.T) {
				j, err := f.repo.GetJob(ctx, reassignedJob.ID)
				require.NoError(t, err)
				j.AssignedTo = f.tech2.ID
				require.NoError(t, f.repo.UpdateJob(ctx, j))
			},
			want: apperr.ErrForbidden,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := f.repo.Repository()
			repo.Tasks = racingTasks{TaskRepo: f.repo, before: func() { tc.before(t) }}
			svc := service.New(repo, nil)

			_, err := svc.UpdateTask(ctx, tc.user, tc.taskID, service.TaskInput{Status: ptr(models.TaskInProgress)})
			require.ErrorIs(t, err, tc.want)
		})
	}

	after, err := f.repo.GetTask(ctx, reassigned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, after.Status, "guarded write must not apply")
}

func TestTaskEquipmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j := f.job(t, f.admin, f.tech1, "j")

	drill, err := f.svc.CreateEquipment(ctx, f.admin, service.EquipmentInput{Name: ptr("Drill"), Type: ptr("TOOL"), SerialNumber: ptr("DR123")})
	require.NoError(t, err)

	_, err = f.svc.CreateTask(ctx, f.admin, service.TaskInput{JobID: &j.ID, Title: ptr("t"), EquipmentIDs: &[]int64{drill.ID, 777}})
	v, ok := apperr.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{`Invalid pk "777" - object does not exist.`}, v.Fields["required_equipment_ids"])

	_, err = f.svc.CreateTask(ctx, f.admin, service.TaskInput{JobID: ptr(int64(555)), Title: ptr("t")})
	v, ok = apperr.IsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "job")

	tk := f.task(t, j, "t", drill.ID, drill.ID)
	require.Len(t, tk.RequiredEquipment, 1)
	assert.Equal(t, 1, tk.Order)

	cleared, err := f.svc.UpdateTask(ctx, f.admin, tk.ID, service.TaskInput{EquipmentIDs: &[]int64{}})
	require.NoError(t, err)
	assert.Empty(t, cleared.RequiredEquipment)
	assert.NotNil(t, cleared.RequiredEquipment)
}

func TestTechnicianTaskListScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.task(t, f.job(t, f.admin, f.tech1, "a"), "a1")
	f.task(t, f.job(t, f.admin, f.tech2, "b"), "b1")

	res, err := f.svc.ListTasks(ctx, f.tech1, models.TaskFilter{}, models.Page{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "a1", res.Results[0].Title)

	res, err = f.svc.ListTasks(ctx, f.sales, models.TaskFilter{}, models.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Count)
}

func TestEquipmentPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 150; i++ {
		_, err := f.svc.CreateEquipment(ctx, f.admin, service.EquipmentInput{
			Name:         ptr(fmt.Sprintf("Item %d", i)),
			Type:         ptr("TOOL"),
			SerialNumber: ptr(fmt.Sprintf("SN-%03d", i)),
		})
		require.NoError(t, err)
	}

	seen := map[int64]bool{}
	first, err := f.svc.ListEquipment(ctx, f.tech1, models.EquipmentFilter{}, models.Page{Number: 1, Size: 100})
	require.NoError(t, err)
	second, err := f.svc.ListEquipment(ctx, f.tech1, models.EquipmentFilter{}, models.Page{Number: 2, Size: 100})
	require.NoError(t, err)

	assert.Len(t, first.Results, 100)
	assert.Len(t, second.Results, 50)
	assert.EqualValues(t, 150, first.Count)
	for _, e := range append(first.Results, second.Results...) {
		assert.False(t, seen[e.ID], "duplicate id %d", e.ID)
		seen[e.ID] = true
	}
	assert.Len(t, seen, 150)

	_, err = f.svc.ListEquipment(ctx, f.tech1, models.EquipmentFilter{}, models.Page{Number: 3, Size: 100})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	clamped, err := f.svc.ListEquipment(ctx, f.tech1, models.EquipmentFilter{}, models.Page{Number: 1, Size: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, clamped.PageSize)

	def, err := f.svc.ListEquipment(ctx, f.tech1, models.EquipmentFilter{}, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 10, def.PageSize)
	assert.Len(t, def.Results, 10)
}

func TestEmptyFirstPage(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ListJobs(context.Background(), f.tech1, models.JobFilter{}, models.Page{Number: 1})
	require.NoError(t, err)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestEquipmentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := service.EquipmentInput{Name: ptr("Crane"), Type: ptr("MACHINE"), SerialNumber: ptr("CR101")}
	_, err := f.svc.CreateEquipment(ctx, f.sales, in)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	crane, err := f.svc.CreateEquipment(ctx, f.admin, in)
	require.NoError(t, err)
	assert.True(t, crane.IsActive)

	_, err = f.svc.CreateEquipment(ctx, f.admin, in)
	v, ok := apperr.IsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "serial_number")

	// re-saving the same serial on the same row is fine
	updated, err := f.svc.UpdateEquipment(ctx, f.admin, crane.ID, service.EquipmentInput{SerialNumber: ptr("CR101"), IsActive: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = f.svc.UpdateEquipment(ctx, f.tech1, crane.ID, service.EquipmentInput{IsActive: ptr(true)})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, f.svc.DeleteEquipment(ctx, f.admin, crane.ID))
	_, err = f.svc.GetEquipment(ctx, f.tech1, crane.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteJobCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.job(t, f.admin, f.tech1, "doomed")
	tk := f.task(t, j, "t")

	require.NoError(t, f.svc.DeleteJob(ctx, f.admin, j.ID))
	_, err := f.svc.GetTask(ctx, f.admin, tk.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteJob(ctx, f.admin, j.ID), apperr.ErrNotFound)
}

func TestNormalizePage(t *testing.T) {
	s := service.New(nil, nil)
	tests := []struct {
		in, want models.Page
	}{
		{models.Page{}, models.Page{Number: 1, Size: 10}},
		{models.Page{Number: -3, Size: 5}, models.Page{Number: 1, Size: 5}},
		{models.Page{Number: 2, Size: 101}, models.Page{Number: 2, Size: 100}},
		{models.Page{Number: math.MaxInt/100 + 1, Size: 100}, models.Page{Number: math.MaxInt/100 + 1, Size: 100}},
	}
	for _, tc := range tests {
		got, err := s.NormalizePage(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.GreaterOrEqual(t, got.Offset(), 0)
	}

	s.SetPagination(20, 50)
	got, err := s.NormalizePage(models.Page{})
	require.NoError(t, err)
	assert.Equal(t, models.Page{Number: 1, Size: 20}, got)
	got, err = s.NormalizePage(models.Page{Size: 60})
	require.NoError(t, err)
	assert.Equal(t, models.Page{Number: 1, Size: 50}, got)

	// an offset past math.MaxInt would wrap to a negative OFFSET
	for _, n := range []int{math.MaxInt/50 + 2, math.MaxInt} {
		_, err = s.NormalizePage(models.Page{Number: n, Size: 50})
		require.ErrorIs(t, err, apperr.ErrNotFound, "page %d", n)
	}
}
