package api

import (
	"net/http"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/service"
)

type JobsHandler struct {
	svc *service.Service
}

func NewJobsHandler(svc *service.Service) *JobsHandler {
	return &JobsHandler{svc: svc}
}

func jobFilter(r *http.Request) (models.JobFilter, error) {
	q := r.URL.Query()
	v := &apperr.ValidationError{}
	f := models.JobFilter{
		Status:   models.JobStatus(q.Get("status")),
		Priority: models.Priority(q.Get("priority")),
		Overdue:  queryBool(r, "overdue", v),
		Search:   q.Get("search"),
	}
	if f.Status != "" && !f.Status.Valid() {
		v.Add("status", "Select a valid choice.")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		v.Add("priority", "Select a valid choice.")
	}
	return f, v.OrNil()
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.svc.ListJobs(r.Context(), UserFromContext(r.Context()), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, res, http.StatusOK)
}

func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := authz.AuthorizeRole(UserFromContext(r.Context()), authz.Create, authz.Job); err != nil {
		writeError(w, r, err)
		return
	}
	var in service.JobInput
	if err := decodeBody(r, schemaJob, &in); err != nil {
		writeError(w, r, err)
		return
	}

	j, err := h.svc.CreateJob(r.Context(), UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, j, http.StatusCreated)
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	j, err := h.svc.GetJob(r.Context(), UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, j, http.StatusOK)
}

// Replace handles PUT; Update handles PATCH.
func (h *JobsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, schemaJobPut)
}

func (h *JobsHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, schemaJob)
}

func (h *JobsHandler) update(w http.ResponseWriter, r *http.Request, schema string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := authz.AuthorizeRole(UserFromContext(r.Context()), authz.Update, authz.Job); err != nil {
		writeError(w, r, err)
		return
	}
	var in service.JobInput
	if err := decodeBody(r, schema, &in); err != nil {
		writeError(w, r, err)
		return
	}

	j, err := h.svc.UpdateJob(r.Context(), UserFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, j, http.StatusOK)
}

func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.DeleteJob(r.Context(), UserFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
