//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "vigia/pkg/domain"
	audit "vigia/pkg/platform/audit"
	"vigia/pkg/platform/audit/store/postgres"
	"vigia/pkg/testutil/containers"
)

type AuditPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	now      time.Time
}

func TestAuditPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditPostgresSuite))
}

func (s *AuditPostgresSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
}

func (s *AuditPostgresSuite) TearDownSuite() {
	if s.postgres != nil {
		_ = s.postgres.DB.Close()
		_ = s.postgres.Container.Terminate(context.Background())
	}
}

func (s *AuditPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "outbox", "audit_events"))
}

func (s *AuditPostgresSuite) outboxCount() int {
	var count int
	err := s.postgres.DB.QueryRow(`SELECT count(*) FROM outbox WHERE published_at IS NULL`).Scan(&count)
	s.Require().NoError(err)
	return count
}

func (s *AuditPostgresSuite) TestAppendWritesOutboxAndMaterializes() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())

	err := s.store.Append(ctx, audit.Event{
		Timestamp: s.now,
		UserID:    userID,
		Subject:   "pass VISIT01",
		Action:    string(audit.EventAccessDenied),
		Decision:  "denied",
		Reason:    "pass already consumed",
		PassCode:  "VISIT01",
	})
	s.Require().NoError(err)

	s.Equal(1, s.outboxCount())

	events, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventAccessDenied), events[0].Action)
	s.Equal("pass already consumed", events[0].Reason)
	// Category is derived from the action when the caller leaves it blank.
	s.Equal(audit.CategoryAccess, events[0].Category)
}

func (s *AuditPostgresSuite) TestListByUserScoping() {
	ctx := context.Background()
	carla := id.UserID(uuid.New())
	marta := id.UserID(uuid.New())

	for i, uid := range []id.UserID{carla, carla, marta} {
		err := s.store.Append(ctx, audit.Event{
			Timestamp: s.now.Add(time.Duration(i) * time.Minute),
			UserID:    uid,
			Subject:   "login",
			Action:    string(audit.EventLoginFailed),
		})
		s.Require().NoError(err)
	}

	events, err := s.store.ListByUser(ctx, carla)
	s.Require().NoError(err)
	s.Len(events, 2)

	events, err = s.store.ListByUser(ctx, id.UserID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *AuditPostgresSuite) TestListRecentNewestFirst() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := s.store.Append(ctx, audit.Event{
			Timestamp: s.now.Add(time.Duration(i) * time.Minute),
			UserID:    id.UserID(uuid.New()),
			Subject:   "pass",
			Action:    string(audit.EventPassIssued),
		})
		s.Require().NoError(err)
	}

	events, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.True(events[0].Timestamp.After(events[1].Timestamp))
}

func (s *AuditPostgresSuite) TestAppendWithoutUser() {
	ctx := context.Background()
	err := s.store.Append(ctx, audit.Event{
		Timestamp: s.now,
		Subject:   "token",
		Action:    string(audit.EventTokenRevoked),
	})
	s.Require().NoError(err)

	events, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.True(events[0].UserID.IsNil())
	s.Equal(audit.CategorySecurity, events[0].Category)
}
