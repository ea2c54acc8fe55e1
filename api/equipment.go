package api

import (
	"net/http"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/service"
)

type EquipmentHandler struct {
	svc *service.Service
}

func NewEquipmentHandler(svc *service.Service) *EquipmentHandler {
	return &EquipmentHandler{svc: svc}
}

func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	v := &apperr.ValidationError{}
	f := models.EquipmentFilter{
		Type:     r.URL.Query().Get("type"),
		IsActive: queryBool(r, "is_active", v),
		Search:   r.URL.Query().Get("search"),
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

	res, err := h.svc.ListEquipment(r.Context(), UserFromContext(r.Context()), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, res, http.StatusOK)
}

func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := authz.AuthorizeRole(UserFromContext(r.Context()), authz.Create, authz.Equipment); err != nil {
		writeError(w, r, err)
		return
	}
	var in service.EquipmentInput
	if err := decodeBody(r, schemaEquipment, &in); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := h.svc.CreateEquipment(r.Context(), UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, e, http.StatusCreated)
}

func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := h.svc.GetEquipment(r.Context(), UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, e, http.StatusOK)
}

func (h *EquipmentHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, schemaEquipmentPut)
}

func (h *EquipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, schemaEquipment)
}

func (h *EquipmentHandler) update(w http.ResponseWriter, r *http.Request, schema string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := authz.AuthorizeRole(UserFromContext(r.Context()), authz.Update, authz.Equipment); err != nil {
		writeError(w, r, err)
		return
	}
	var in service.EquipmentInput
	if err := decodeBody(r, schema, &in); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := h.svc.UpdateEquipment(r.Context(), UserFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, e, http.StatusOK)
}

func (h *EquipmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.DeleteEquipment(r.Context(), UserFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
