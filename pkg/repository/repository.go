package repository

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/fieldops/internal/models"
)

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate value")

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Lookups by id return (nil, nil) when the row does not exist.

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
	CountUsersByRole(ctx context.Context, role models.Role) (int64, error)
}

type JobRepo interface {
	CreateJob(ctx context.Context, j *models.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListJobs(ctx context.Context, f models.JobFilter, p models.Page) ([]models.Job, int64, error)
	UpdateJob(ctx context.Context, j *models.Job) error
	DeleteJob(ctx context.Context, id int64) error
}

// TaskGuard restricts a task write to tasks whose job is assigned to
// AssignedTo. Zero means unrestricted.
type TaskGuard struct {
	AssignedTo int64
}

type TaskRepo interface {
	// CreateTask inserts the task and links equipmentIDs in one transaction.
	CreateTask(ctx context.Context, t *models.JobTask, equipmentIDs []int64) (int64, error)
	GetTask(ctx context.Context, id int64) (*models.JobTask, error)
	ListTasks(ctx context.Context, f models.TaskFilter, p models.Page) ([]models.JobTask, int64, error)
	// UpdateTask writes t and, when equipmentIDs is non-nil, replaces its
	// equipment links. It reports false when the guard matched no row.
	UpdateTask(ctx context.Context, t *models.JobTask, equipmentIDs []int64, g TaskGuard) (bool, error)
	DeleteTask(ctx context.Context, id int64) error
}

type EquipmentRepo interface {
	CreateEquipment(ctx context.Context, e *models.Equipment) (int64, error)
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	GetEquipmentBySerial(ctx context.Context, serial string) (*models.Equipment, error)
	ListEquipment(ctx context.Context, f models.EquipmentFilter, p models.Page) ([]models.Equipment, int64, error)
	// MissingEquipment returns the ids in ids that do not exist.
	MissingEquipment(ctx context.Context, ids []int64) ([]int64, error)
	UpdateEquipment(ctx context.Context, e *models.Equipment) error
	DeleteEquipment(ctx context.Context, id int64) error
}

type DashboardRepo interface {
	// TechnicianTasks returns the technician's tasks in the given statuses
	// together with their equipment, read from one snapshot.
	TechnicianTasks(ctx context.Context, technicianID int64, statuses []models.TaskStatus) ([]models.DashboardTask, map[int64][]models.Equipment, error)
	// JobProgress lists jobs matching f with per-job task counts.
	JobProgress(ctx context.Context, f models.JobFilter, p models.Page) ([]models.JobProgress, int64, error)
}

type OverdueRepo interface {
	// FlagOverdue marks unfinished jobs scheduled before now as overdue and
	// returns the number of rows changed.
	FlagOverdue(ctx context.Context, now time.Time) (int64, error)
}

type BackgroundJobRepo interface {
	Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error)
	// ClaimNext marks the next runnable job as running and returns it, or nil.
	ClaimNext(ctx context.Context) (*models.BackgroundJob, error)
	UpdateBackgroundJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
}

// Repository groups the domain repositories used by the services.
type Repository struct {
	Users     UserRepo
	Jobs      JobRepo
	Tasks     TaskRepo
	Equipment EquipmentRepo
	Dashboard DashboardRepo
	Overdue   OverdueRepo
}
