package api

import (
	"net/http"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/service"
)

type TasksHandler struct {
	svc *service.Service
}

func NewTasksHandler(svc *service.Service) *TasksHandler {
	return &TasksHandler{svc: svc}
}

func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	v := &apperr.ValidationError{}
	f := models.TaskFilter{
		JobID:  queryInt(r, "job", v),
		Status: models.TaskStatus(r.URL.Query().Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		v.Add("status", "Select a valid choice.")
	}
	if err := v.OrNil(); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.ListTasks(r.Context(), UserFromContext(r.Context()), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, res, http.StatusOK)
}

func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := authz.AuthorizeRole(UserFromContext(r.Context()), authz.Create, authz.Task); err != nil {
		writeError(w, r, err)
		return
	}
	var in service.TaskInput
	if err := decodeBody(r, schemaTask, &in); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.svc.CreateTask(r.Context(), UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, t, http.StatusCreated)
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.svc.GetTask(r.Context(), UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, t, http.StatusOK)
}

func (h *TasksHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, schemaTaskPut)
}

func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, schemaTask)
}

func (h *TasksHandler) update(w http.ResponseWriter, r *http.Request, schema string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := authz.AuthorizeRole(UserFromContext(r.Context()), authz.Update, authz.Task); err != nil {
		writeError(w, r, err)
		return
	}
	var in service.TaskInput
	if err := decodeBody(r, schema, &in); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.svc.UpdateTask(r.Context(), UserFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, t, http.StatusOK)
}

func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.DeleteTask(r.Context(), UserFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
