package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "vigia/pkg/domain"
	audit "vigia/pkg/platform/audit"
	"vigia/pkg/platform/audit/store/memory"
)

type PublisherSuite struct {
	suite.Suite
	store *memory.InMemoryStore
	ctx   context.Context
}

func (s *PublisherSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.ctx = context.Background()
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) TestSyncEmit() {
	pub := NewPublisher(s.store)
	defer pub.Close()

	userID := id.UserID(uuid.New())
	s.Require().NoError(pub.Emit(s.ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventPassIssued),
	}))

	events, err := pub.List(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventPassIssued), events[0].Action)
	s.False(events[0].Timestamp.IsZero(), "zero timestamps are stamped at emit")
	s.Equal(audit.CategoryOperations, events[0].Category)
}

func (s *PublisherSuite) TestCategoryDerivation() {
	pub := NewPublisher(s.store)
	defer pub.Close()

	userID := id.UserID(uuid.New())
	s.Require().NoError(pub.Emit(s.ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventAccessDenied),
	}))
	s.Require().NoError(pub.Emit(s.ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventLoginFailed),
	}))

	events, err := pub.List(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)

	categories := map[string]audit.EventCategory{}
	for _, event := range events {
		categories[event.Action] = event.Category
	}
	s.Equal(audit.CategoryAccess, categories[string(audit.EventAccessDenied)])
	s.Equal(audit.CategorySecurity, categories[string(audit.EventLoginFailed)])
}

func (s *PublisherSuite) TestAsyncFlushOnClose() {
	pub := NewPublisher(s.store, WithAsyncBuffer(16))

	userID := id.UserID(uuid.New())
	for i := 0; i < 5; i++ {
		s.Require().NoError(pub.Emit(s.ctx, audit.Event{
			UserID: userID,
			Action: string(audit.EventAccessRegistered),
		}))
	}
	pub.Close()

	events, err := s.store.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Len(events, 5)
}

func (s *PublisherSuite) TestAsyncFullBufferFallsBackToSync() {
	pub := NewPublisher(s.store, WithAsyncBuffer(1))
	defer pub.Close()

	userID := id.UserID(uuid.New())
	// Flood well past the buffer; nothing may be dropped.
	for i := 0; i < 50; i++ {
		s.Require().NoError(pub.Emit(s.ctx, audit.Event{
			UserID: userID,
			Action: string(audit.EventAccessRegistered),
		}))
	}
	pub.Close()

	events, err := s.store.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Len(events, 50)
}

func (s *PublisherSuite) TestExplicitTimestampPreserved() {
	pub := NewPublisher(s.store)
	defer pub.Close()

	userID := id.UserID(uuid.New())
	stamp := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(pub.Emit(s.ctx, audit.Event{
		UserID:    userID,
		Action:    string(audit.EventPassIssued),
		Timestamp: stamp,
	}))

	events, err := pub.List(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(stamp, events[0].Timestamp)
}
