// Package dashboard builds the technician's daily task view and job
// progress view.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

// DateLayout is the grouping key format. Dates are taken in UTC, the zone the
// store keeps scheduled dates in.
const DateLayout = "2006-01-02"

// ActiveStatuses are the task statuses shown on the daily view.
var ActiveStatuses = []models.TaskStatus{models.TaskUpcoming, models.TaskInProgress}

type Aggregator struct {
	repo   repository.DashboardRepo
	logger *slog.Logger
}

func New(repo repository.DashboardRepo, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{repo: repo, logger: logger}
}

// Daily returns u's active tasks grouped by the scheduled date of their job.
func (a *Aggregator) Daily(ctx context.Context, u *models.User) ([]models.DashboardDay, error) {
	if err := authorize(u); err != nil {
		return nil, err
	}

	rows, equipment, err := a.repo.TechnicianTasks(ctx, u.ID, ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("load dashboard tasks: %w", err)
	}

	days := GroupByDate(rows, equipment)
	a.logger.Debug("daily dashboard", "technician", u.ID, "tasks", len(rows), "days", len(days))

	return days, nil
}

// Jobs returns u's jobs with task counts, one page at a time. p must already
// be normalized.
func (a *Aggregator) Jobs(ctx context.Context, u *models.User, f models.JobFilter, p models.Page) ([]models.JobProgress, int64, error) {
	if err := authorize(u); err != nil {
		return nil, 0, err
	}

	f.AssignedTo = u.ID
	f.Search = ""
	jobs, total, err := a.repo.JobProgress(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("load job progress: %w", err)
	}
	if jobs == nil {
		jobs = []models.JobProgress{}
	}

	return jobs, total, nil
}

// authorize allows technicians to read their own dashboard only.
func authorize(u *models.User) error {
	var self int64
	if u != nil {
		self = u.ID
	}
	return authz.Authorize(u, authz.Read, authz.Target{Kind: authz.Dashboard, AssignedTo: self})
}

// GroupByDate groups rows by the UTC date of their job's scheduled date.
// Groups are in ascending date order; tasks inside a group are ordered by
// their order field, then id. The result is never nil.
func GroupByDate(rows []models.DashboardTask, equipment map[int64][]models.Equipment) []models.DashboardDay {
	byDate := map[string][]models.DashboardItem{}
	for _, r := range rows {
		key := r.ScheduledDate.UTC().Format(DateLayout)

		item := models.DashboardItem{JobTask: r.Task, JobTitle: r.JobTitle, ScheduledDate: r.ScheduledDate}
		item.RequiredEquipment = equipment[r.Task.ID]
		if item.RequiredEquipment == nil {
			item.RequiredEquipment = []models.Equipment{}
		}
		byDate[key] = append(byDate[key], item)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	// the layout sorts lexically in date order
	sort.Strings(dates)

	out := make([]models.DashboardDay, 0, len(dates))
	for _, d := range dates {
		items := byDate[d]
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Order != items[j].Order {
				return items[i].Order < items[j].Order
			}
			return items[i].ID < items[j].ID
		})
		out = append(out, models.DashboardDay{Date: d, Tasks: items})
	}

	return out
}
