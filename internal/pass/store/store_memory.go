package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"vigia/internal/pass/models"
	id "vigia/pkg/domain"
	"vigia/pkg/platform/sentinel"
)

// InMemory keeps passes in maps guarded by a single RWMutex. Good enough for
// unit tests and local development; the Postgres store is the production path.
type InMemory struct {
	mu     sync.RWMutex
	passes map[id.PassID]*models.Pass
	byCode map[string]id.PassID
}

// NewInMemory constructs an empty in-memory pass store.
func NewInMemory() *InMemory {
	return &InMemory{
		passes: make(map[id.PassID]*models.Pass),
		byCode: make(map[string]id.PassID),
	}
}

func (s *InMemory) Create(_ context.Context, pass *models.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := strings.ToUpper(pass.Code)
	if _, taken := s.byCode[code]; taken {
		return sentinel.ErrAlreadyUsed
	}
	copied := *pass
	s.passes[pass.ID] = &copied
	s.byCode[code] = pass.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, passID id.PassID) (*models.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pass, ok := s.passes[passID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *pass
	return &copied, nil
}

func (s *InMemory) FindByCode(_ context.Context, code string) (*models.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	passID, ok := s.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.passes[passID]
	return &copied, nil
}

// FindByCodeForUpdate has no row lock to take here; callers serialize on the
// transaction runner's key lock instead.
func (s *InMemory) FindByCodeForUpdate(ctx context.Context, code string) (*models.Pass, error) {
	return s.FindByCode(ctx, code)
}

func (s *InMemory) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, taken := s.byCode[strings.ToUpper(code)]
	return taken, nil
}

func (s *InMemory) ListByOwner(_ context.Context, owner id.ResidentID) ([]*models.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Pass
	for _, pass := range s.passes {
		if pass.OwnerResidentID == owner {
			copied := *pass
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *InMemory) Execute(_ context.Context, passID id.PassID,
	validate func(pass *models.Pass) error,
	mutate func(pass *models.Pass)) (*models.Pass, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.passes[passID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	// Work on a copy so a failed validate leaves the stored pass untouched.
	working := *stored
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	s.passes[passID] = &working

	copied := working
	return &copied, nil
}

func (s *InMemory) Delete(_ context.Context, passID id.PassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pass, ok := s.passes[passID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byCode, strings.ToUpper(pass.Code))
	delete(s.passes, passID)
	return nil
}

func (s *InMemory) RevokeOwnerless(_ context.Context, passID id.PassID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pass, ok := s.passes[passID]
	if !ok {
		return sentinel.ErrNotFound
	}
	pass.Revoked = true
	pass.RevokedAt = &now
	pass.OwnerResidentID = id.ResidentID{}
	pass.UpdatedAt = now
	return nil
}
