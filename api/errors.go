package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/fieldops/internal/apperr"
)

const nonFieldErrors = "non_field_errors"

type detailResponse struct {
	Detail string `json:"detail"`
}

// writeError is the single mapping from service errors to HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := apperr.IsValidation(err); ok {
		writeJSON(w, v.Fields, http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		logger.Debug("unauthenticated", slog.String("path", r.URL.Path), slog.Any("err", err))
		writeJSON(w, detailResponse{Detail: "Authentication credentials were not provided or are invalid."}, http.StatusUnauthorized)
	case errors.Is(err, apperr.ErrForbidden):
		logger.Info("forbidden", slog.String("path", r.URL.Path), slog.Any("err", err))
		writeJSON(w, detailResponse{Detail: "You do not have permission to perform this action."}, http.StatusForbidden)
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, detailResponse{Detail: "Not found."}, http.StatusNotFound)
	default:
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.Any("err", err),
		)
		writeJSON(w, detailResponse{Detail: "Internal server error."}, http.StatusInternalServerError)
	}
}
