package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
)

// JobInput carries the writable job fields. Nil fields are left unchanged on
// update and defaulted on create.
type JobInput struct {
	Title         *string           `json:"title"`
	Description   *string           `json:"description"`
	ClientName    *string           `json:"client_name"`
	AssignedTo    *int64            `json:"assigned_to"`
	Status        *models.JobStatus `json:"status"`
	Priority      *models.Priority  `json:"priority"`
	ScheduledDate *time.Time        `json:"scheduled_date"`
}

func (in JobInput) apply(j *models.Job) {
	if in.Title != nil {
		j.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		j.Description = *in.Description
	}
	if in.ClientName != nil {
		j.ClientName = strings.TrimSpace(*in.ClientName)
	}
	if in.AssignedTo != nil {
		j.AssignedTo = *in.AssignedTo
	}
	if in.Status != nil {
		j.Status = *in.Status
	}
	if in.Priority != nil {
		j.Priority = *in.Priority
	}
	if in.ScheduledDate != nil {
		j.ScheduledDate = in.ScheduledDate.UTC()
	}
}

func (s *Service) CreateJob(ctx context.Context, u *models.User, in JobInput) (*models.Job, error) {
	if err := authz.Authorize(u, authz.Create, authz.Target{Kind: authz.Job}); err != nil {
		return nil, err
	}

	v := &apperr.ValidationError{}
	required(v, "title", in.Title == nil)
	required(v, "client_name", in.ClientName == nil)
	required(v, "assigned_to", in.AssignedTo == nil)
	required(v, "scheduled_date", in.ScheduledDate == nil)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	j := &models.Job{Status: models.JobPending, Priority: models.PriorityMedium, CreatedBy: u.ID}
	in.apply(j)
	if err := s.validateJob(ctx, j, true); err != nil {
		return nil, err
	}

	id, err := s.repo.Jobs.CreateJob(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Info("job created", "job_id", id, "by", u.ID, "assigned_to", j.AssignedTo)

	return s.repo.Jobs.GetJob(ctx, id)
}

func (s *Service) GetJob(ctx context.Context, u *models.User, id int64) (*models.Job, error) {
	if err := authz.Authorize(u, authz.List, authz.Target{Kind: authz.Job}); err != nil {
		return nil, err
	}

	j, err := s.repo.Jobs.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	if j == nil {
		return nil, fmt.Errorf("job %d: %w", id, apperr.ErrNotFound)
	}
	if err := authorizeRead(u, authz.Target{Kind: authz.Job, AssignedTo: j.AssignedTo}); err != nil {
		return nil, err
	}

	return j, nil
}

func (s *Service) ListJobs(ctx context.Context, u *models.User, f models.JobFilter, p models.Page) (*models.PageResult[models.Job], error) {
	if err := authz.Authorize(u, authz.List, authz.Target{Kind: authz.Job}); err != nil {
		return nil, err
	}

	f = authz.ScopeJobs(u, f)
	p, err := s.NormalizePage(p)
	if err != nil {
		return nil, err
	}
	jobs, total, err := s.repo.Jobs.ListJobs(ctx, f, p)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return pageResult(jobs, total, p)
}

// UpdateJob applies in to the job. Overdue is never touched here: only the
// sweep sets it.
func (s *Service) UpdateJob(ctx context.Context, u *models.User, id int64, in JobInput) (*models.Job, error) {
	j, err := s.GetJob(ctx, u, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(u, authz.Update, authz.Target{Kind: authz.Job, AssignedTo: j.AssignedTo}); err != nil {
		return nil, err
	}

	before := j.AssignedTo
	in.apply(j)
	if err := s.validateJob(ctx, j, j.AssignedTo != before); err != nil {
		return nil, err
	}

	if err := s.repo.Jobs.UpdateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("update job %d: %w", id, err)
	}

	return s.repo.Jobs.GetJob(ctx, id)
}

func (s *Service) DeleteJob(ctx context.Context, u *models.User, id int64) error {
	if err := authz.Authorize(u, authz.Delete, authz.Target{Kind: authz.Job}); err != nil {
		return err
	}

	j, err := s.repo.Jobs.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job %d: %w", id, err)
	}
	if j == nil {
		return fmt.Errorf("job %d: %w", id, apperr.ErrNotFound)
	}

	if err := s.repo.Jobs.DeleteJob(ctx, id); err != nil {
		return fmt.Errorf("delete job %d: %w", id, err)
	}
	s.logger.Info("job deleted", "job_id", id, "by", u.ID)

	return nil
}

// validateJob checks field values and, when checkAssignee is set, that the
// assignee exists and is a technician.
func (s *Service) validateJob(ctx context.Context, j *models.Job, checkAssignee bool) error {
	v := &apperr.ValidationError{}
	required(v, "title", j.Title == "")
	checkLength(v, "title", j.Title, maxTitleLength)
	required(v, "client_name", j.ClientName == "")
	checkLength(v, "client_name", j.ClientName, maxTitleLength)
	if !j.Status.Valid() {
		v.Add("status", fmt.Sprintf("%q is not a valid choice.", j.Status))
	}
	if !j.Priority.Valid() {
		v.Add("priority", fmt.Sprintf("%q is not a valid choice.", j.Priority))
	}
	if j.ScheduledDate.IsZero() {
		v.Add("scheduled_date", "This field is required.")
	}

	if checkAssignee {
		assignee, err := s.repo.Users.GetUserByID(ctx, j.AssignedTo)
		if err != nil {
			return fmt.Errorf("lookup assignee: %w", err)
		}
		switch {
		case assignee == nil:
			v.Add("assigned_to", invalidPK(j.AssignedTo))
		case assignee.Role != models.RoleTechnician:
			v.Add("assigned_to", "Assigned user must be a technician.")
		}
	}

	return v.OrNil()
}
