package api

import (
	"fmt"
	"net/http"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/dashboard"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/service"
)

type DashboardHandler struct {
	agg *dashboard.Aggregator
	svc *service.Service
}

func NewDashboardHandler(agg *dashboard.Aggregator, svc *service.Service) *DashboardHandler {
	return &DashboardHandler{agg: agg, svc: svc}
}

// Technician serves ?view=daily (the default) and ?view=jobs.
func (h *DashboardHandler) Technician(w http.ResponseWriter, r *http.Request) {
	switch view := r.URL.Query().Get("view"); view {
	case "", "daily":
		h.daily(w, r)
	case "jobs":
		h.jobs(w, r)
	default:
		writeError(w, r, apperr.NewValidation("view", fmt.Sprintf("%q is not a valid choice.", view)))
	}
}

func (h *DashboardHandler) daily(w http.ResponseWriter, r *http.Request) {
	days, err := h.agg.Daily(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, days, http.StatusOK)
}

func (h *DashboardHandler) jobs(w http.ResponseWriter, r *http.Request) {
	f, err := jobFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p, err = h.svc.NormalizePage(p); err != nil {
		writeError(w, r, err)
		return
	}

	items, total, err := h.agg.Jobs(r.Context(), UserFromContext(r.Context()), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(items) == 0 && p.Number > 1 {
		writeError(w, r, fmt.Errorf("page %d: %w", p.Number, apperr.ErrNotFound))
		return
	}

	writeJSON(w, models.PageResult[models.JobProgress]{Count: total, Page: p.Number, PageSize: p.Size, Results: items}, http.StatusOK)
}
