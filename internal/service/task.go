package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

// TaskInput carries the writable task fields. Nil fields are left unchanged
// on update and defaulted on create. A nil EquipmentIDs keeps the current
// links; an empty one clears them.
type TaskInput struct {
	JobID        *int64             `json:"job"`
	Title        *string            `json:"title"`
	Description  *string            `json:"description"`
	Status       *models.TaskStatus `json:"status"`
	Order        *int               `json:"order"`
	EquipmentIDs *[]int64           `json:"required_equipment_ids"`
}

func (in TaskInput) apply(t *models.JobTask) {
	if in.JobID != nil {
		t.JobID = *in.JobID
	}
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Order != nil {
		t.Order = *in.Order
	}
}

func (in TaskInput) equipment() []int64 {
	if in.EquipmentIDs == nil {
		return nil
	}
	ids := dedupe(*in.EquipmentIDs)
	if ids == nil {
		ids = []int64{}
	}
	return ids
}

// completion keeps CompletedAt in step with a status transition.
func completion(t *models.JobTask, prev models.TaskStatus, now time.Time) {
	switch {
	case t.Status == models.TaskCompleted && prev != models.TaskCompleted:
		at := now.UTC()
		t.CompletedAt = &at
	case t.Status != models.TaskCompleted:
		t.CompletedAt = nil
	}
}

func (s *Service) CreateTask(ctx context.Context, u *models.User, in TaskInput) (*models.JobTask, error) {
	if err := authz.Authorize(u, authz.Create, authz.Target{Kind: authz.Task}); err != nil {
		return nil, err
	}

	v := &apperr.ValidationError{}
	required(v, "job", in.JobID == nil)
	required(v, "title", in.Title == nil)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	t := &models.JobTask{Status: models.TaskPending, Order: 1}
	in.apply(t)
	equipment := in.equipment()
	if err := s.validateTask(ctx, t, equipment, true); err != nil {
		return nil, err
	}
	completion(t, "", time.Now())

	id, err := s.repo.Tasks.CreateTask(ctx, t, equipment)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return s.repo.Tasks.GetTask(ctx, id)
}

// loadTask returns the task and the assignee of its job.
func (s *Service) loadTask(ctx context.Context, id int64) (*models.JobTask, int64, error) {
	t, err := s.repo.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("get task %d: %w", id, err)
	}
	if t == nil {
		return nil, 0, fmt.Errorf("task %d: %w", id, apperr.ErrNotFound)
	}

	j, err := s.repo.Jobs.GetJob(ctx, t.JobID)
	if err != nil {
		return nil, 0, fmt.Errorf("get job %d: %w", t.JobID, err)
	}
	if j == nil {
		return nil, 0, fmt.Errorf("job %d of task %d: %w", t.JobID, id, apperr.ErrNotFound)
	}

	return t, j.AssignedTo, nil
}

func (s *Service) GetTask(ctx context.Context, u *models.User, id int64) (*models.JobTask, error) {
	if err := authz.Authorize(u, authz.List, authz.Target{Kind: authz.Task}); err != nil {
		return nil, err
	}

	t, owner, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(u, authz.Target{Kind: authz.Task, AssignedTo: owner}); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, u *models.User, f models.TaskFilter, p models.Page) (*models.PageResult[models.JobTask], error) {
	if err := authz.Authorize(u, authz.List, authz.Target{Kind: authz.Task}); err != nil {
		return nil, err
	}

	f = authz.ScopeTasks(u, f)
	p, err := s.NormalizePage(p)
	if err != nil {
		return nil, err
	}
	tasks, total, err := s.repo.Tasks.ListTasks(ctx, f, p)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return pageResult(tasks, total, p)
}

// UpdateTask applies in to the task. A technician may only update tasks of
// jobs assigned to them, may not move a task to another job, and the
// ownership is re-checked by the write itself.
func (s *Service) UpdateTask(ctx context.Context, u *models.User, id int64, in TaskInput) (*models.JobTask, error) {
	if err := authz.Authorize(u, authz.List, authz.Target{Kind: authz.Task}); err != nil {
		return nil, err
	}

	t, owner, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(u, authz.Update, authz.Target{Kind: authz.Task, AssignedTo: owner}); err != nil {
		return nil, err
	}

	var guard repository.TaskGuard
	if u.Role == models.RoleTechnician {
		guard.AssignedTo = u.ID
		if in.JobID != nil && *in.JobID != t.JobID {
			return nil, fmt.Errorf("move task %d to job %d: %w", id, *in.JobID, apperr.ErrForbidden)
		}
	}

	prev := t.Status
	prevJob := t.JobID
	in.apply(t)
	equipment := in.equipment()
	if err := s.validateTask(ctx, t, equipment, t.JobID != prevJob); err != nil {
		return nil, err
	}
	completion(t, prev, time.Now())

	ok, err := s.repo.Tasks.UpdateTask(ctx, t, equipment, guard)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	if !ok {
		if guard.AssignedTo > 0 {
			// the job was reassigned between the read and the write
			return nil, fmt.Errorf("task %d no longer assigned to %d: %w", id, u.ID, apperr.ErrForbidden)
		}
		return nil, fmt.Errorf("task %d: %w", id, apperr.ErrNotFound)
	}

	return s.repo.Tasks.GetTask(ctx, id)
}

func (s *Service) DeleteTask(ctx context.Context, u *models.User, id int64) error {
	if err := authz.Authorize(u, authz.Delete, authz.Target{Kind: authz.Task}); err != nil {
		return err
	}

	t, err := s.repo.Tasks.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("get task %d: %w", id, err)
	}
	if t == nil {
		return fmt.Errorf("task %d: %w", id, apperr.ErrNotFound)
	}

	if err := s.repo.Tasks.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}

	return nil
}

func (s *Service) validateTask(ctx context.Context, t *models.JobTask, equipment []int64, checkJob bool) error {
	v := &apperr.ValidationError{}
	required(v, "title", t.Title == "")
	checkLength(v, "title", t.Title, maxTitleLength)
	if !t.Status.Valid() {
		v.Add("status", fmt.Sprintf("%q is not a valid choice.", t.Status))
	}

	if checkJob {
		j, err := s.repo.Jobs.GetJob(ctx, t.JobID)
		if err != nil {
			return fmt.Errorf("lookup job: %w", err)
		}
		if j == nil {
			v.Add("job", invalidPK(t.JobID))
		}
	}

	if len(equipment) > 0 {
		missing, err := s.repo.Equipment.MissingEquipment(ctx, equipment)
		if err != nil {
			return fmt.Errorf("lookup equipment: %w", err)
		}
		for _, id := range missing {
			v.Add("required_equipment_ids", invalidPK(id))
		}
	}

	return v.OrNil()
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
