package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigia/internal/auth/jwt"
	"vigia/internal/auth/store/revocation"
	dirmodels "vigia/internal/directory/models"
	dirservice "vigia/internal/directory/service"
	dirstore "vigia/internal/directory/store"
	dErrors "vigia/pkg/domain-errors"
	txrunner "vigia/pkg/platform/tx"
	"vigia/pkg/requestcontext"
)

type AuthServiceSuite struct {
	suite.Suite
	directory *dirstore.InMemory
	tokens    *jwt.Service
	trl       *revocation.MemoryTRL
	svc       *Service
	ctx       context.Context
	now       time.Time
}

func (s *AuthServiceSuite) SetupTest() {
	s.directory = dirstore.NewInMemory()
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.tokens = jwt.NewService("test-signing-key", "vigia", "vigia-clients", 3*time.Hour,
		jwt.WithTimeFunc(func() time.Time { return s.now }))
	s.trl = revocation.NewMemoryTRL(revocation.WithMemoryClock(func() time.Time { return s.now }))
	s.svc = New(s.directory, s.tokens, s.trl)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	registrar := dirservice.New(s.directory, nil, nil, txrunner.NewShardedRunner())
	_, err := registrar.Register(s.ctx, dirservice.RegisterInput{
		Username:  "carla",
		Password:  "correct-horse",
		Role:      dirmodels.RoleResident,
		FirstName: "Carla",
		LastName:  "Nunez",
		Unit:      "B-12",
	})
	s.Require().NoError(err)
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) TestLogin() {
	s.Run("issues a token for valid credentials", func() {
		result, err := s.svc.Login(s.ctx, "carla", "correct-horse")
		s.Require().NoError(err)
		s.NotEmpty(result.Token)
		s.Equal(3*time.Hour, result.ExpiresIn)
		s.Equal(dirmodels.RoleResident, result.User.Role)

		claims, err := s.tokens.ValidateToken(result.Token)
		s.Require().NoError(err)
		s.Equal("resident", claims.Role)
		s.Equal(result.User.ResidentID.String(), claims.ResidentID)
	})

	s.Run("unknown username and wrong password share one error", func() {
		_, unknownErr := s.svc.Login(s.ctx, "nobody", "correct-horse")
		s.Require().Error(unknownErr)
		s.True(dErrors.HasCode(unknownErr, dErrors.CodeUnauthorized))

		_, wrongErr := s.svc.Login(s.ctx, "carla", "wrong-password")
		s.Require().Error(wrongErr)
		s.True(dErrors.HasCode(wrongErr, dErrors.CodeUnauthorized))

		s.Equal(dErrors.Message(unknownErr), dErrors.Message(wrongErr))
	})
}

func (s *AuthServiceSuite) TestLogout() {
	result, err := s.svc.Login(s.ctx, "carla", "correct-horse")
	s.Require().NoError(err)
	claims, err := s.tokens.ValidateToken(result.Token)
	s.Require().NoError(err)

	s.Run("revokes the token for its remaining lifetime", func() {
		s.Require().NoError(s.svc.Logout(s.ctx, result.Token, claims.JTI))

		revoked, err := s.trl.IsRevoked(s.ctx, claims.JTI)
		s.Require().NoError(err)
		s.True(revoked)
	})

	s.Run("an expired token is a no-op", func() {
		lateCtx := requestcontext.WithTime(context.Background(), s.now.Add(4*time.Hour))
		s.Require().NoError(s.svc.Logout(lateCtx, result.Token, "some-jti"))

		revoked, err := s.trl.IsRevoked(s.ctx, "some-jti")
		s.Require().NoError(err)
		s.False(revoked)
	})
}
