// Package service applies the role policy, scoping and domain validation to
// job, task and equipment operations before they reach the repositories.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"unicode/utf8"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	maxTitleLength  = 200
	maxSerialLength = 100
	maxTypeLength   = 100
)

type Service struct {
	repo        *repository.Repository
	logger      *slog.Logger
	pageSize    int
	maxPageSize int
}

func New(repo *repository.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, pageSize: DefaultPageSize, maxPageSize: MaxPageSize}
}

// SetPagination overrides the default and maximum page sizes.
func (s *Service) SetPagination(def, max int) {
	if def > 0 {
		s.pageSize = def
	}
	if max > 0 {
		s.maxPageSize = max
	}
	if s.pageSize > s.maxPageSize {
		s.pageSize = s.maxPageSize
	}
}

// NormalizePage fills defaults and clamps the size to the maximum. A page
// whose offset does not fit in an int is not found.
func (s *Service) NormalizePage(p models.Page) (models.Page, error) {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = s.pageSize
	}
	if p.Size > s.maxPageSize {
		p.Size = s.maxPageSize
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return p, fmt.Errorf("page %d: %w", p.Number, apperr.ErrNotFound)
	}
	return p, nil
}

// pageResult builds the envelope. A page past the end of a non-empty first
// page is not found.
func pageResult[T any](items []T, total int64, p models.Page) (*models.PageResult[T], error) {
	if len(items) == 0 && p.Number > 1 {
		return nil, fmt.Errorf("page %d: %w", p.Number, apperr.ErrNotFound)
	}
	if items == nil {
		items = []T{}
	}
	return &models.PageResult[T]{Count: total, Page: p.Number, PageSize: p.Size, Results: items}, nil
}

// authorizeRead hides records outside the caller's scope as not found.
func authorizeRead(u *models.User, t authz.Target) error {
	err := authz.Authorize(u, authz.Read, t)
	if errors.Is(err, apperr.ErrForbidden) {
		return fmt.Errorf("%s outside scope: %w", t.Kind, apperr.ErrNotFound)
	}
	return err
}

func checkLength(v *apperr.ValidationError, field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
	}
}

func required(v *apperr.ValidationError, field string, missing bool) {
	if missing {
		v.Add(field, "This field is required.")
	}
}

func invalidPK(id int64) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
}
