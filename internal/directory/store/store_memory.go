package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"vigia/internal/directory/models"
	id "vigia/pkg/domain"
	"vigia/pkg/platform/sentinel"
)

// InMemory keeps the directory in maps guarded by a single RWMutex.
type InMemory struct {
	mu         sync.RWMutex
	users      map[id.UserID]*models.User
	byUsername map[string]id.UserID
	residents  map[id.ResidentID]*models.Resident
	guards     map[id.GuardID]*models.Guard
}

// NewInMemory constructs an empty in-memory directory store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:      make(map[id.UserID]*models.User),
		byUsername: make(map[string]id.UserID),
		residents:  make(map[id.ResidentID]*models.Resident),
		guards:     make(map[id.GuardID]*models.Guard),
	}
}

func (s *InMemory) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Username)
	if _, taken := s.byUsername[key]; taken {
		return sentinel.ErrConflict
	}
	copied := *user
	s.users[user.ID] = &copied
	s.byUsername[key] = user.ID
	return nil
}

func (s *InMemory) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.users[userID]
	return &copied, nil
}

func (s *InMemory) FindUserByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *InMemory) DeleteUserByResident(_ context.Context, residentID id.ResidentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, user := range s.users {
		if user.ResidentID != nil && *user.ResidentID == residentID {
			delete(s.byUsername, strings.ToLower(user.Username))
			delete(s.users, userID)
		}
	}
	return nil
}

func (s *InMemory) CreateResident(_ context.Context, resident *models.Resident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *resident
	s.residents[resident.ID] = &copied
	return nil
}

func (s *InMemory) FindResident(_ context.Context, residentID id.ResidentID) (*models.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resident, ok := s.residents[residentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *resident
	return &copied, nil
}

func (s *InMemory) ListResidents(_ context.Context, filter ResidentFilter) ([]*models.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Resident
	for _, resident := range s.residents {
		if !matchesFilter(resident, filter) {
			continue
		}
		copied := *resident
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastName != result[j].LastName {
			return result[i].LastName < result[j].LastName
		}
		return result[i].FirstName < result[j].FirstName
	})
	return result, nil
}

func matchesFilter(resident *models.Resident, filter ResidentFilter) bool {
	if filter.Name != "" {
		needle := strings.ToLower(filter.Name)
		first := strings.ToLower(resident.FirstName)
		last := strings.ToLower(resident.LastName)
		if !strings.Contains(first, needle) && !strings.Contains(last, needle) {
			return false
		}
	}
	if filter.Unit != "" && resident.Unit != filter.Unit {
		return false
	}
	return true
}

func (s *InMemory) UpdateResident(_ context.Context, resident *models.Resident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.residents[resident.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *resident
	s.residents[resident.ID] = &copied
	return nil
}

func (s *InMemory) DeleteResident(_ context.Context, residentID id.ResidentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.residents[residentID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.residents, residentID)
	return nil
}

func (s *InMemory) CreateGuard(_ context.Context, guard *models.Guard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *guard
	s.guards[guard.ID] = &copied
	return nil
}

func (s *InMemory) FindGuard(_ context.Context, guardID id.GuardID) (*models.Guard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	guard, ok := s.guards[guardID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *guard
	return &copied, nil
}

func (s *InMemory) ListGuards(_ context.Context) ([]*models.Guard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Guard
	for _, guard := range s.guards {
		copied := *guard
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastName != result[j].LastName {
			return result[i].LastName < result[j].LastName
		}
		return result[i].FirstName < result[j].FirstName
	})
	return result, nil
}
