package models

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleTechnician Role = "TECHNICIAN"
	RoleSalesAgent Role = "SALES_AGENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleSalesAgent:
		return true
	}
	return false
}

type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobInProgress, JobCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// TaskStatus values. TaskUpcoming is kept distinct from TaskPending: the
// technician dashboard selects UPCOMING and IN_PROGRESS tasks only.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskUpcoming   TaskStatus = "UPCOMING"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskUpcoming:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	Created      time.Time `json:"created_at"`
	Updated      time.Time `json:"updated_at"`
}

type Job struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ClientName    string    `json:"client_name"`
	CreatedBy     int64     `json:"created_by"`
	AssignedTo    int64     `json:"assigned_to"`
	Status        JobStatus `json:"status"`
	Priority      Priority  `json:"priority"`
	ScheduledDate time.Time `json:"scheduled_date"`
	Overdue       bool      `json:"overdue"`
	Created       time.Time `json:"created_at"`
	Updated       time.Time `json:"updated_at"`
}

type JobTask struct {
	ID                int64       `json:"id"`
	JobID             int64       `json:"job"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Status            TaskStatus  `json:"status"`
	Order             int         `json:"order"`
	CompletedAt       *time.Time  `json:"completed_at"`
	RequiredEquipment []Equipment `json:"required_equipment"`
	Created           time.Time   `json:"created_at"`
	Updated           time.Time   `json:"updated_at"`
}

// EquipmentIDs returns the ids of the task's required equipment.
func (t *JobTask) EquipmentIDs() []int64 {
	ids := make([]int64, 0, len(t.RequiredEquipment))
	for _, e := range t.RequiredEquipment {
		ids = append(ids, e.ID)
	}
	return ids
}

type Equipment struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	SerialNumber string    `json:"serial_number"`
	IsActive     bool      `json:"is_active"`
	Created      time.Time `json:"created_at"`
	Updated      time.Time `json:"updated_at"`
}

// JobFilter narrows job listings. Zero values mean "no constraint".
type JobFilter struct {
	AssignedTo int64
	Status     JobStatus
	Priority   Priority
	Overdue    *bool
	Search     string
}

// TaskFilter narrows task listings. AssignedTo matches the parent job's assignee.
type TaskFilter struct {
	AssignedTo int64
	JobID      int64
	Status     TaskStatus
}

type EquipmentFilter struct {
	Type     string
	IsActive *bool
	Search   string
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

type PageResult[T any] struct {
	Count    int64 `json:"count"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Results  []T   `json:"results"`
}

// DashboardTask is a task row joined with the fields of its parent job the
// dashboard needs.
type DashboardTask struct {
	Task          JobTask
	JobTitle      string
	ScheduledDate time.Time
}

type DashboardDay struct {
	Date  string          `json:"date"`
	Tasks []DashboardItem `json:"tasks"`
}

type DashboardItem struct {
	JobTask
	JobTitle      string    `json:"job_title"`
	ScheduledDate time.Time `json:"scheduled_date"`
}

// JobProgress is a job with its task completion counts.
type JobProgress struct {
	Job
	TaskCount          int64 `json:"task_count"`
	CompletedTaskCount int64 `json:"completed_task_count"`
}

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
