package mock

import (
	"context"
	"time"

	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

// Test helpers and mocks
type Mocks struct {
	Users   *mockUserRepo
	Overdue *mockOverdueRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		Users:   &mockUserRepo{byID: map[int64]*models.User{}},
		Overdue: &mockOverdueRepo{},
	}
}

// mockUserRepo keeps users in memory. HideOnLookup makes username lookups
// miss so CreateUser reaches the store's unique check.
type mockUserRepo struct {
	byID         map[int64]*models.User
	nextID       int64
	CreateErr    error
	LookupErr    error
	HideOnLookup bool
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	for _, existing := range m.byID {
		if existing.Username == u.Username {
			return 0, repository.ErrDuplicate
		}
	}
	m.nextID++
	stored := *u
	stored.ID = m.nextID
	m.byID[stored.ID] = &stored
	return stored.ID, nil
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	if m.HideOnLookup {
		return nil, nil
	}
	for _, u := range m.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) SetUserActive(ctx context.Context, id int64, active bool) error {
	if u, ok := m.byID[id]; ok {
		u.IsActive = active
	}
	return nil
}

func (m *mockUserRepo) CountUsersByRole(ctx context.Context, role models.Role) (int64, error) {
	if m.LookupErr != nil {
		return 0, m.LookupErr
	}
	var n int64
	for _, u := range m.byID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// mockOverdueRepo records the sweep times it was called with.
type mockOverdueRepo struct {
	Calls   []time.Time
	Flagged int64
	Err     error
}

func (m *mockOverdueRepo) FlagOverdue(ctx context.Context, at time.Time) (int64, error) {
	m.Calls = append(m.Calls, at)
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Flagged, nil
}
