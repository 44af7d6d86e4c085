package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vigia/internal/pass/models"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
	"vigia/pkg/platform/sentinel"
)

type PassStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *PassStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
}

func TestPassStoreSuite(t *testing.T) {
	suite.Run(t, new(PassStoreSuite))
}

func (s *PassStoreSuite) newPass(code string) *models.Pass {
	return &models.Pass{
		ID:              id.PassID(uuid.New()),
		OwnerResidentID: id.ResidentID(uuid.New()),
		HolderName:      "Ana",
		HolderSurname:   "Torres",
		Kind:            models.KindRecurring,
		Code:            code,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
}

func (s *PassStoreSuite) TestCreateAndLookup() {
	s.Run("creates and finds by ID and code", func() {
		pass := s.newPass("AAAA111")
		s.Require().NoError(s.store.Create(s.ctx, pass))

		byID, err := s.store.FindByID(s.ctx, pass.ID)
		s.Require().NoError(err)
		s.Equal(pass.Code, byID.Code)

		byCode, err := s.store.FindByCode(s.ctx, "aaaa111")
		s.Require().NoError(err)
		s.Equal(pass.ID, byCode.ID)
	})

	s.Run("rejects duplicate code regardless of case", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newPass("BBBB222")))
		err := s.store.Create(s.ctx, s.newPass("bbbb222"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("reports code existence", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newPass("CCCC333")))
		taken, err := s.store.CodeExists(s.ctx, "cccc333")
		s.Require().NoError(err)
		s.True(taken)

		free, err := s.store.CodeExists(s.ctx, "ZZZZ999")
		s.Require().NoError(err)
		s.False(free)
	})

	s.Run("returns ErrNotFound for unknown pass", func() {
		_, err := s.store.FindByID(s.ctx, id.PassID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByCode(s.ctx, "NOPE000")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PassStoreSuite) TestListByOwner() {
	owner := id.ResidentID(uuid.New())

	first := s.newPass("DDDD444")
	first.OwnerResidentID = owner
	first.CreatedAt = s.now.Add(-time.Hour)
	second := s.newPass("EEEE555")
	second.OwnerResidentID = owner
	second.CreatedAt = s.now

	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, s.newPass("FFFF666")))

	passes, err := s.store.ListByOwner(s.ctx, owner)
	s.Require().NoError(err)
	s.Require().Len(passes, 2)
	s.Equal("EEEE555", passes[0].Code)
	s.Equal("DDDD444", passes[1].Code)
}

func (s *PassStoreSuite) TestExecute() {
	s.Run("applies the mutation when validation passes", func() {
		pass := s.newPass("GGGG777")
		s.Require().NoError(s.store.Create(s.ctx, pass))

		updated, err := s.store.Execute(s.ctx, pass.ID,
			func(p *models.Pass) error { return p.CanCancel(s.now, false) },
			func(p *models.Pass) { p.ApplyCancel(s.now) },
		)
		s.Require().NoError(err)
		s.True(updated.Revoked)

		stored, err := s.store.FindByID(s.ctx, pass.ID)
		s.Require().NoError(err)
		s.True(stored.Revoked)
	})

	s.Run("leaves the pass untouched when validation fails", func() {
		pass := s.newPass("HHHH888")
		s.Require().NoError(s.store.Create(s.ctx, pass))

		_, err := s.store.Execute(s.ctx, pass.ID,
			func(p *models.Pass) error {
				p.HolderName = "scribbled"
				return dErrors.New(dErrors.CodeInvariantViolation, "no")
			},
			func(p *models.Pass) { p.ApplyCancel(s.now) },
		)
		s.Require().Error(err)

		stored, err := s.store.FindByID(s.ctx, pass.ID)
		s.Require().NoError(err)
		s.False(stored.Revoked)
		s.Equal("Ana", stored.HolderName)
	})

	s.Run("returns ErrNotFound for unknown pass", func() {
		_, err := s.store.Execute(s.ctx, id.PassID(uuid.New()),
			func(*models.Pass) error { return nil },
			func(*models.Pass) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PassStoreSuite) TestDelete() {
	pass := s.newPass("IIII999")
	s.Require().NoError(s.store.Create(s.ctx, pass))
	s.Require().NoError(s.store.Delete(s.ctx, pass.ID))

	_, err := s.store.FindByID(s.ctx, pass.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// The code is free again after deletion.
	taken, err := s.store.CodeExists(s.ctx, "IIII999")
	s.Require().NoError(err)
	s.False(taken)

	s.Require().ErrorIs(s.store.Delete(s.ctx, pass.ID), sentinel.ErrNotFound)
}

func (s *PassStoreSuite) TestRevokeOwnerless() {
	pass := s.newPass("JJJJ000")
	s.Require().NoError(s.store.Create(s.ctx, pass))

	s.Require().NoError(s.store.RevokeOwnerless(s.ctx, pass.ID, s.now))

	stored, err := s.store.FindByID(s.ctx, pass.ID)
	s.Require().NoError(err)
	s.True(stored.Revoked)
	s.True(stored.OwnerResidentID.IsNil())
	s.Require().NotNil(stored.RevokedAt)

	s.Require().ErrorIs(s.store.RevokeOwnerless(s.ctx, id.PassID(uuid.New()), s.now), sentinel.ErrNotFound)
}
