package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dirmodels "vigia/internal/directory/models"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
)

type JWTSuite struct {
	suite.Suite
	svc *Service
	now time.Time
}

func (s *JWTSuite) SetupTest() {
	s.svc = NewService("test-signing-key", "vigia", "vigia-clients", 3*time.Hour)
	s.now = time.Now()
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTSuite))
}

func (s *JWTSuite) residentUser() (*dirmodels.User, id.ResidentID) {
	residentID := id.ResidentID(uuid.New())
	return &dirmodels.User{
		ID:         id.UserID(uuid.New()),
		Username:   "carla",
		Role:       dirmodels.RoleResident,
		ResidentID: &residentID,
	}, residentID
}

func (s *JWTSuite) TestRoundTrip() {
	s.Run("resident token carries role and profile reference", func() {
		user, residentID := s.residentUser()

		token, err := s.svc.GenerateToken(user, s.now)
		s.Require().NoError(err)

		claims, err := s.svc.ValidateToken(token)
		s.Require().NoError(err)
		s.Equal(user.ID.String(), claims.UserID)
		s.Equal("resident", claims.Role)
		s.Equal(residentID.String(), claims.ResidentID)
		s.Empty(claims.GuardID)
		s.NotEmpty(claims.JTI)
	})

	s.Run("guard token carries the guard reference", func() {
		guardID := id.GuardID(uuid.New())
		user := &dirmodels.User{
			ID:      id.UserID(uuid.New()),
			Role:    dirmodels.RoleGuard,
			GuardID: &guardID,
		}

		token, err := s.svc.GenerateToken(user, s.now)
		s.Require().NoError(err)

		claims, err := s.svc.ValidateToken(token)
		s.Require().NoError(err)
		s.Equal("guard", claims.Role)
		s.Equal(guardID.String(), claims.GuardID)
		s.Empty(claims.ResidentID)
	})

	s.Run("every token gets a distinct jti", func() {
		user, _ := s.residentUser()

		first, err := s.svc.GenerateToken(user, s.now)
		s.Require().NoError(err)
		second, err := s.svc.GenerateToken(user, s.now)
		s.Require().NoError(err)

		firstClaims, err := s.svc.ValidateToken(first)
		s.Require().NoError(err)
		secondClaims, err := s.svc.ValidateToken(second)
		s.Require().NoError(err)
		s.NotEqual(firstClaims.JTI, secondClaims.JTI)
	})
}

func (s *JWTSuite) TestValidationFailures() {
	user, _ := s.residentUser()

	s.Run("rejects a token signed with a different key", func() {
		other := NewService("different-key", "vigia", "vigia-clients", 3*time.Hour)
		token, err := other.GenerateToken(user, s.now)
		s.Require().NoError(err)

		_, err = s.svc.ValidateToken(token)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects an expired token with a specific message", func() {
		token, err := s.svc.GenerateToken(user, s.now.Add(-4*time.Hour))
		s.Require().NoError(err)

		_, err = s.svc.ValidateToken(token)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("token has expired", dErrors.Message(err))
	})

	s.Run("rejects garbage", func() {
		_, err := s.svc.ValidateToken("not.a.token")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *JWTSuite) TestInjectedClock() {
	user, _ := s.residentUser()
	issued := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	s.Run("validates lifetimes against the injected clock, not the wall clock", func() {
		svc := NewService("test-signing-key", "vigia", "vigia-clients", 3*time.Hour,
			WithTimeFunc(func() time.Time { return issued.Add(time.Hour) }))
		token, err := svc.GenerateToken(user, issued)
		s.Require().NoError(err)

		_, err = svc.ValidateToken(token)
		s.Require().NoError(err)
	})

	s.Run("expires against the injected clock", func() {
		svc := NewService("test-signing-key", "vigia", "vigia-clients", 3*time.Hour,
			WithTimeFunc(func() time.Time { return issued.Add(4 * time.Hour) }))
		token, err := svc.GenerateToken(user, issued)
		s.Require().NoError(err)

		_, err = svc.ValidateToken(token)
		s.Require().Error(err)
		s.Equal("token has expired", dErrors.Message(err))
	})
}

func (s *JWTSuite) TestRemainingTTL() {
	user, _ := s.residentUser()

	s.Run("reports time left on a live token", func() {
		token, err := s.svc.GenerateToken(user, s.now)
		s.Require().NoError(err)

		remaining := s.svc.RemainingTTL(token, s.now.Add(time.Hour))
		s.InDelta((2 * time.Hour).Seconds(), remaining.Seconds(), 2)
	})

	s.Run("reports zero for an expired token", func() {
		token, err := s.svc.GenerateToken(user, s.now.Add(-4*time.Hour))
		s.Require().NoError(err)
		s.Zero(s.svc.RemainingTTL(token, s.now))
	})

	s.Run("reports zero for garbage", func() {
		s.Zero(s.svc.RemainingTTL("junk", s.now))
	})
}
