//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vigia/internal/access/models"
	"vigia/internal/access/store"
	dirmodels "vigia/internal/directory/models"
	dirstore "vigia/internal/directory/store"
	passmodels "vigia/internal/pass/models"
	passstore "vigia/internal/pass/store"
	id "vigia/pkg/domain"
	"vigia/pkg/platform/sentinel"
	"vigia/pkg/testutil/containers"
)

type AccessPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	passes   *passstore.Postgres
	guard    id.GuardID
	resident id.ResidentID
	now      time.Time
}

func TestAccessPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AccessPostgresSuite))
}

func (s *AccessPostgresSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.passes = passstore.NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	ctx := context.Background()
	directory := dirstore.NewPostgres(s.postgres.DB)
	guard := &dirmodels.Guard{
		ID:        id.GuardID(uuid.New()),
		FirstName: "Marta",
		LastName:  "Silva",
		Badge:     "G-017",
		CreatedAt: s.now,
	}
	s.Require().NoError(directory.CreateGuard(ctx, guard))
	s.guard = guard.ID

	resident := &dirmodels.Resident{
		ID:        id.ResidentID(uuid.New()),
		FirstName: "Carla",
		LastName:  "Nunez",
		Unit:      "B-12",
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(directory.CreateResident(ctx, resident))
	s.resident = resident.ID
}

func (s *AccessPostgresSuite) TearDownSuite() {
	if s.postgres != nil {
		_ = s.postgres.DB.Close()
		_ = s.postgres.Container.Terminate(context.Background())
	}
}

func (s *AccessPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "access_events", "passes"))
}

func (s *AccessPostgresSuite) createPass(code string) id.PassID {
	pass := &passmodels.Pass{
		ID:              id.PassID(uuid.New()),
		OwnerResidentID: s.resident,
		HolderName:      "Ana",
		HolderSurname:   "Reyes",
		Kind:            passmodels.KindSingleUse,
		Code:            code,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
	s.Require().NoError(s.passes.Create(context.Background(), pass))
	return pass.ID
}

func (s *AccessPostgresSuite) newEvent(at time.Time) *models.AccessEvent {
	return &models.AccessEvent{
		ID:        id.EventID(uuid.New()),
		Timestamp: at,
		Direction: models.DirectionEntry,
		GuardID:   s.guard,
	}
}

func (s *AccessPostgresSuite) TestAppendAndFind() {
	ctx := context.Background()
	event := s.newEvent(s.now)
	event.ResidentID = &s.resident
	event.VehiclePlate = "AB-12-CD"
	event.Notes = "delivery van"
	s.Require().NoError(s.store.Append(ctx, event))

	found, err := s.store.FindByID(ctx, event.ID)
	s.Require().NoError(err)
	s.Equal(models.DirectionEntry, found.Direction)
	s.Equal("AB-12-CD", found.VehiclePlate)
	s.Require().NotNil(found.ResidentID)
	s.Equal(s.resident, *found.ResidentID)
	s.True(found.Timestamp.Equal(s.now))

	_, err = s.store.FindByID(ctx, id.EventID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AccessPostgresSuite) TestSingleConsumption() {
	ctx := context.Background()
	passID := s.createPass("VISIT01")

	first := s.newEvent(s.now)
	first.PassID = &passID
	first.ConsumesPass = true
	s.Require().NoError(s.store.Append(ctx, first))

	second := s.newEvent(s.now.Add(time.Minute))
	second.PassID = &passID
	second.ConsumesPass = true
	s.ErrorIs(s.store.Append(ctx, second), sentinel.ErrConflict)

	// The losing event left no trace.
	count, err := s.store.CountByPass(ctx, passID)
	s.Require().NoError(err)
	s.Equal(1, count)

	consumed, err := s.store.HasConsumed(ctx, passID)
	s.Require().NoError(err)
	s.True(consumed)
}

// TestConcurrentConsumption drives concurrent consuming appends for one pass
// straight at the database. The partial unique index must let exactly one
// commit through.
func (s *AccessPostgresSuite) TestConcurrentConsumption() {
	ctx := context.Background()
	passID := s.createPass("VISIT01")
	const goroutines = 16

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	var conflicted atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			event := s.newEvent(s.now.Add(time.Duration(offset) * time.Microsecond))
			event.PassID = &passID
			event.ConsumesPass = true

			switch err := s.store.Append(ctx, event); {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicted.Add(1)
			default:
				s.Failf("unexpected append error", "%v", err)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load(), "exactly one consumption must commit")
	s.Equal(int32(goroutines-1), conflicted.Load())

	count, err := s.store.CountByPass(ctx, passID)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *AccessPostgresSuite) TestNonConsumingAppendsNeverConflict() {
	ctx := context.Background()
	passID := s.createPass("VISIT01")

	for i := 0; i < 3; i++ {
		event := s.newEvent(s.now.Add(time.Duration(i) * time.Minute))
		event.PassID = &passID
		s.Require().NoError(s.store.Append(ctx, event))
	}

	count, err := s.store.CountByPass(ctx, passID)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *AccessPostgresSuite) TestUpdateDetails() {
	ctx := context.Background()
	event := s.newEvent(s.now)
	s.Require().NoError(s.store.Append(ctx, event))

	updated, err := s.store.UpdateDetails(ctx, event.ID, "XY-99-ZZ", "plate corrected")
	s.Require().NoError(err)
	s.Equal("XY-99-ZZ", updated.VehiclePlate)
	s.Equal("plate corrected", updated.Notes)
	s.Equal(models.DirectionEntry, updated.Direction)

	_, err = s.store.UpdateDetails(ctx, id.EventID(uuid.New()), "", "")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AccessPostgresSuite) TestListFilters() {
	ctx := context.Background()

	entry := s.newEvent(s.now)
	entry.ResidentID = &s.resident
	entry.VehiclePlate = "AB-12-CD"
	s.Require().NoError(s.store.Append(ctx, entry))

	exit := s.newEvent(s.now.Add(time.Hour))
	exit.Direction = models.DirectionExit
	s.Require().NoError(s.store.Append(ctx, exit))

	s.Run("newest first", func() {
		events, err := s.store.List(ctx, store.Filter{})
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(exit.ID, events[0].ID)
		s.Equal(entry.ID, events[1].ID)
	})

	s.Run("by direction", func() {
		direction := models.DirectionExit
		events, err := s.store.List(ctx, store.Filter{Direction: &direction})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(exit.ID, events[0].ID)
	})

	s.Run("by plate case-insensitively", func() {
		events, err := s.store.List(ctx, store.Filter{Plate: "ab-12-cd"})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(entry.ID, events[0].ID)
	})

	s.Run("by resident", func() {
		events, err := s.store.List(ctx, store.Filter{ResidentID: &s.resident})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(entry.ID, events[0].ID)
	})

	s.Run("by time range", func() {
		from := s.now.Add(30 * time.Minute)
		events, err := s.store.List(ctx, store.Filter{From: &from})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(exit.ID, events[0].ID)
	})

	s.Run("with limit", func() {
		events, err := s.store.List(ctx, store.Filter{Limit: 1})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(exit.ID, events[0].ID)
	})
}

func (s *AccessPostgresSuite) TestClearResidentRefs() {
	ctx := context.Background()
	event := s.newEvent(s.now)
	event.ResidentID = &s.resident
	s.Require().NoError(s.store.Append(ctx, event))

	s.Require().NoError(s.store.ClearResidentRefs(ctx, s.resident))

	found, err := s.store.FindByID(ctx, event.ID)
	s.Require().NoError(err)
	s.Nil(found.ResidentID)
}

func (s *AccessPostgresSuite) TestPassDeletionDetachesEvents() {
	ctx := context.Background()
	passID := s.createPass("VISIT01")

	event := s.newEvent(s.now)
	event.PassID = &passID
	s.Require().NoError(s.store.Append(ctx, event))

	s.Require().NoError(s.passes.Delete(ctx, passID))

	// The ledger keeps the event; only the pass reference is dropped.
	found, err := s.store.FindByID(ctx, event.ID)
	s.Require().NoError(err)
	s.Nil(found.PassID)
}
