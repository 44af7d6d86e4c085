package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
)

type PassModelSuite struct {
	suite.Suite
	now time.Time
}

func (s *PassModelSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
}

func TestPassModelSuite(t *testing.T) {
	suite.Run(t, new(PassModelSuite))
}

func (s *PassModelSuite) newPass(kind Kind) *Pass {
	return &Pass{
		ID:              id.PassID(uuid.New()),
		OwnerResidentID: id.ResidentID(uuid.New()),
		HolderName:      "Ana",
		HolderSurname:   "Torres",
		Kind:            kind,
		Code:            "K7M2P9",
		CreatedAt:       s.now.Add(-time.Hour),
		UpdatedAt:       s.now.Add(-time.Hour),
	}
}

func (s *PassModelSuite) TestParseKind() {
	s.Run("accepts the three kinds", func() {
		for _, raw := range []string{"single_use", "recurring", "date_limited"} {
			kind, err := ParseKind(raw)
			s.Require().NoError(err)
			s.Equal(Kind(raw), kind)
		}
	})

	s.Run("rejects unknown kind", func() {
		_, err := ParseKind("permanent")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})
}

func (s *PassModelSuite) TestStatusPrecedence() {
	s.Run("active when nothing applies", func() {
		pass := s.newPass(KindRecurring)
		s.Equal(StatusActive, pass.StatusAt(s.now, false))
	})

	s.Run("cancelled wins over expiry", func() {
		pass := s.newPass(KindDateLimited)
		past := s.now.Add(-time.Minute)
		pass.ValidUntil = &past
		pass.Revoked = true
		s.Equal(StatusCancelled, pass.StatusAt(s.now, false))
	})

	s.Run("cancelled wins over consumption", func() {
		pass := s.newPass(KindSingleUse)
		pass.Revoked = true
		s.Equal(StatusCancelled, pass.StatusAt(s.now, true))
	})

	s.Run("expired wins over consumption", func() {
		pass := s.newPass(KindSingleUse)
		past := s.now.Add(-time.Minute)
		pass.ValidUntil = &past
		s.Equal(StatusExpired, pass.StatusAt(s.now, true))
	})

	s.Run("used only for consumed single-use", func() {
		pass := s.newPass(KindSingleUse)
		s.Equal(StatusUsed, pass.StatusAt(s.now, true))

		recurring := s.newPass(KindRecurring)
		s.Equal(StatusActive, recurring.StatusAt(s.now, true))
	})

	s.Run("valid_until exactly now is not yet expired", func() {
		pass := s.newPass(KindDateLimited)
		pass.ValidUntil = &s.now
		s.Equal(StatusActive, pass.StatusAt(s.now, false))
	})
}

func (s *PassModelSuite) TestCancelGuard() {
	s.Run("active pass can be cancelled", func() {
		pass := s.newPass(KindRecurring)
		s.Require().NoError(pass.CanCancel(s.now, false))

		pass.ApplyCancel(s.now)
		s.True(pass.Revoked)
		s.Require().NotNil(pass.RevokedAt)
		s.Equal(s.now, *pass.RevokedAt)
		s.Equal(StatusCancelled, pass.StatusAt(s.now, false))
	})

	s.Run("consumed single-use pass cannot be cancelled", func() {
		pass := s.newPass(KindSingleUse)
		err := pass.CanCancel(s.now, true)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("cancelling twice is rejected", func() {
		pass := s.newPass(KindRecurring)
		pass.ApplyCancel(s.now)
		err := pass.CanCancel(s.now, false)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("expired pass cannot be cancelled", func() {
		pass := s.newPass(KindDateLimited)
		past := s.now.Add(-time.Second)
		pass.ValidUntil = &past
		s.Require().Error(pass.CanCancel(s.now, false))
	})
}

func (s *PassModelSuite) TestMutationGuard() {
	s.Run("active pass accepts updates", func() {
		pass := s.newPass(KindRecurring)
		s.Require().NoError(pass.CanMutate(s.now, false))

		name := "Beatriz"
		until := s.now.Add(48 * time.Hour)
		kind := KindDateLimited
		pass.ApplyUpdate(Update{HolderName: &name, Kind: &kind, ValidUntil: &until}, s.now)

		s.Equal("Beatriz", pass.HolderName)
		s.Equal("Torres", pass.HolderSurname)
		s.Equal(KindDateLimited, pass.Kind)
		s.Require().NotNil(pass.ValidUntil)
		s.Equal(until, *pass.ValidUntil)
		s.Equal(s.now, pass.UpdatedAt)
	})

	s.Run("clear removes the expiry instant", func() {
		pass := s.newPass(KindRecurring)
		until := s.now.Add(time.Hour)
		pass.ValidUntil = &until

		pass.ApplyUpdate(Update{ClearValidUntil: true}, s.now)
		s.Nil(pass.ValidUntil)
	})

	s.Run("frozen once cancelled", func() {
		pass := s.newPass(KindRecurring)
		pass.ApplyCancel(s.now)
		s.Require().Error(pass.CanMutate(s.now, false))
	})

	s.Run("frozen once consumed", func() {
		pass := s.newPass(KindSingleUse)
		s.Require().Error(pass.CanMutate(s.now, true))
	})
}

func (s *PassModelSuite) TestDeleteGuard() {
	s.Run("event-free active pass may be deleted", func() {
		pass := s.newPass(KindRecurring)
		s.Require().NoError(pass.CanDelete(s.now, false, 0))
	})

	s.Run("pass with history may not be deleted", func() {
		pass := s.newPass(KindRecurring)
		err := pass.CanDelete(s.now, false, 2)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("cancelled pass may not be deleted", func() {
		pass := s.newPass(KindRecurring)
		pass.ApplyCancel(s.now)
		s.Require().Error(pass.CanDelete(s.now, false, 0))
	})
}
