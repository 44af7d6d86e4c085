package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"vigia/internal/access/models"
	id "vigia/pkg/domain"
	"vigia/pkg/platform/sentinel"
)

// InMemory keeps the ledger in a slice guarded by a RWMutex. The consuming
// check and the append share the lock, mirroring the partial unique index
// the Postgres store relies on.
type InMemory struct {
	mu       sync.RWMutex
	events   map[id.EventID]*models.AccessEvent
	consumed map[id.PassID]bool
}

// NewInMemory constructs an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		events:   make(map[id.EventID]*models.AccessEvent),
		consumed: make(map[id.PassID]bool),
	}
}

func (s *InMemory) Append(_ context.Context, event *models.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ConsumesPass {
		if event.PassID == nil {
			return sentinel.ErrInvalidState
		}
		if s.consumed[*event.PassID] {
			return sentinel.ErrConflict
		}
		s.consumed[*event.PassID] = true
	}
	copied := copyEvent(event)
	s.events[event.ID] = copied
	return nil
}

func (s *InMemory) HasConsumed(_ context.Context, passID id.PassID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consumed[passID], nil
}

func (s *InMemory) CountByPass(_ context.Context, passID id.PassID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.events {
		if event.PassID != nil && *event.PassID == passID {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) FindByID(_ context.Context, eventID id.EventID) (*models.AccessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyEvent(event), nil
}

func (s *InMemory) UpdateDetails(_ context.Context, eventID id.EventID, plate, notes string) (*models.AccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	event.VehiclePlate = plate
	event.Notes = notes
	return copyEvent(event), nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]*models.AccessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.AccessEvent
	for _, event := range s.events {
		if !matchesFilter(event, filter) {
			continue
		}
		result = append(result, copyEvent(event))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesFilter(event *models.AccessEvent, filter Filter) bool {
	if filter.ResidentID != nil {
		if event.ResidentID == nil || *event.ResidentID != *filter.ResidentID {
			return false
		}
	}
	if filter.PassID != nil {
		if event.PassID == nil || *event.PassID != *filter.PassID {
			return false
		}
	}
	if filter.GuardID != nil && event.GuardID != *filter.GuardID {
		return false
	}
	if filter.Direction != nil && event.Direction != *filter.Direction {
		return false
	}
	if filter.Plate != "" && !strings.EqualFold(event.VehiclePlate, filter.Plate) {
		return false
	}
	if filter.From != nil && event.Timestamp.Before(*filter.From) {
		return false
	}
	if filter.To != nil && event.Timestamp.After(*filter.To) {
		return false
	}
	return true
}

func (s *InMemory) ClearResidentRefs(_ context.Context, residentID id.ResidentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event.ResidentID != nil && *event.ResidentID == residentID {
			event.ResidentID = nil
		}
	}
	return nil
}

func copyEvent(event *models.AccessEvent) *models.AccessEvent {
	copied := *event
	if event.ResidentID != nil {
		residentID := *event.ResidentID
		copied.ResidentID = &residentID
	}
	if event.PassID != nil {
		passID := *event.PassID
		copied.PassID = &passID
	}
	return &copied
}
