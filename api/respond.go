package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// decodeBody reads the request body, validates it against the named schema
// and decodes it into dst.
func decodeBody(r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := validateBody(r.Context(), schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return apperr.NewValidation(te.Field, "Invalid value.")
		}
		var pe *time.ParseError
		if errors.As(err, &pe) {
			return apperr.NewValidation("scheduled_date", "Datetime has wrong format. Use RFC 3339.")
		}
		return apperr.NewValidation(nonFieldErrors, err.Error())
	}
	return nil
}

// pathID reads the {id} route variable. mux only routes digits here, so a
// parse failure means the value overflowed.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id %q: %w", mux.Vars(r)["id"], apperr.ErrNotFound)
	}
	return id, nil
}

// pageFromQuery reads page and page_size. An unparsable page is not found; an
// unparsable page_size falls back to the default.
func pageFromQuery(r *http.Request) (models.Page, error) {
	q := r.URL.Query()
	var p models.Page

	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, fmt.Errorf("invalid page %q: %w", s, apperr.ErrNotFound)
		}
		p.Number = n
	}
	if s := q.Get("page_size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			p.Size = n
		}
	}

	return p, nil
}

// queryBool parses an optional boolean filter into v.
func queryBool(r *http.Request, key string, v *apperr.ValidationError) *bool {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		v.Add(key, "Must be a valid boolean.")
		return nil
	}
	return &b
}

func queryInt(r *http.Request, key string, v *apperr.ValidationError) int64 {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		v.Add(key, "A valid integer is required.")
		return 0
	}
	return n
}
