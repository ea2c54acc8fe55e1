package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

type EquipmentInput struct {
	Name         *string `json:"name"`
	Type         *string `json:"type"`
	SerialNumber *string `json:"serial_number"`
	IsActive     *bool   `json:"is_active"`
}

func (in EquipmentInput) apply(e *models.Equipment) {
	if in.Name != nil {
		e.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		e.Type = strings.TrimSpace(*in.Type)
	}
	if in.SerialNumber != nil {
		e.SerialNumber = strings.TrimSpace(*in.SerialNumber)
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
}

func (s *Service) CreateEquipment(ctx context.Context, u *models.User, in EquipmentInput) (*models.Equipment, error) {
	if err := authz.Authorize(u, authz.Create, authz.Target{Kind: authz.Equipment}); err != nil {
		return nil, err
	}

	v := &apperr.ValidationError{}
	required(v, "name", in.Name == nil)
	required(v, "type", in.Type == nil)
	required(v, "serial_number", in.SerialNumber == nil)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	e := &models.Equipment{IsActive: true}
	in.apply(e)
	if err := s.validateEquipment(ctx, e); err != nil {
		return nil, err
	}

	id, err := s.repo.Equipment.CreateEquipment(ctx, e)
	if err != nil {
		return nil, equipmentWriteError(err)
	}

	return s.repo.Equipment.GetEquipment(ctx, id)
}

func (s *Service) GetEquipment(ctx context.Context, u *models.User, id int64) (*models.Equipment, error) {
	if err := authz.Authorize(u, authz.Read, authz.Target{Kind: authz.Equipment}); err != nil {
		return nil, err
	}

	e, err := s.repo.Equipment.GetEquipment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get equipment %d: %w", id, err)
	}
	if e == nil {
		return nil, fmt.Errorf("equipment %d: %w", id, apperr.ErrNotFound)
	}

	return e, nil
}

func (s *Service) ListEquipment(ctx context.Context, u *models.User, f models.EquipmentFilter, p models.Page) (*models.PageResult[models.Equipment], error) {
	if err := authz.Authorize(u, authz.List, authz.Target{Kind: authz.Equipment}); err != nil {
		return nil, err
	}

	f = authz.ScopeEquipment(u, f)
	p, err := s.NormalizePage(p)
	if err != nil {
		return nil, err
	}
	items, total, err := s.repo.Equipment.ListEquipment(ctx, f, p)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}

	return pageResult(items, total, p)
}

func (s *Service) UpdateEquipment(ctx context.Context, u *models.User, id int64, in EquipmentInput) (*models.Equipment, error) {
	if err := authz.Authorize(u, authz.Update, authz.Target{Kind: authz.Equipment}); err != nil {
		return nil, err
	}

	e, err := s.GetEquipment(ctx, u, id)
	if err != nil {
		return nil, err
	}

	in.apply(e)
	if err := s.validateEquipment(ctx, e); err != nil {
		return nil, err
	}

	if err := s.repo.Equipment.UpdateEquipment(ctx, e); err != nil {
		return nil, equipmentWriteError(err)
	}

	return s.repo.Equipment.GetEquipment(ctx, id)
}

func (s *Service) DeleteEquipment(ctx context.Context, u *models.User, id int64) error {
	if err := authz.Authorize(u, authz.Delete, authz.Target{Kind: authz.Equipment}); err != nil {
		return err
	}

	if _, err := s.GetEquipment(ctx, u, id); err != nil {
		return err
	}

	if err := s.repo.Equipment.DeleteEquipment(ctx, id); err != nil {
		return fmt.Errorf("delete equipment %d: %w", id, err)
	}

	return nil
}

func (s *Service) validateEquipment(ctx context.Context, e *models.Equipment) error {
	v := &apperr.ValidationError{}
	required(v, "name", e.Name == "")
	checkLength(v, "name", e.Name, maxTitleLength)
	required(v, "type", e.Type == "")
	checkLength(v, "type", e.Type, maxTypeLength)
	required(v, "serial_number", e.SerialNumber == "")
	checkLength(v, "serial_number", e.SerialNumber, maxSerialLength)

	if e.SerialNumber != "" {
		other, err := s.repo.Equipment.GetEquipmentBySerial(ctx, e.SerialNumber)
		if err != nil {
			return fmt.Errorf("lookup serial number: %w", err)
		}
		if other != nil && other.ID != e.ID {
			v.Add("serial_number", "Equipment with this serial number already exists.")
		}
	}

	return v.OrNil()
}

// equipmentWriteError turns a unique violation that slipped past validation
// into the same field error.
func equipmentWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperr.NewValidation("serial_number", "Equipment with this serial number already exists.")
	}
	return fmt.Errorf("write equipment: %w", err)
}
