//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigia/internal/auth/store/revocation"
	"vigia/pkg/platform/sentinel"
	"vigia/pkg/testutil/containers"
)

type RedisTRLSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	trl   *revocation.RedisTRL
}

func TestRedisTRLSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisTRLSuite))
}

func (s *RedisTRLSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.trl = revocation.NewRedisTRL(s.redis.Client)
}

func (s *RedisTRLSuite) TearDownSuite() {
	if s.redis != nil {
		_ = s.redis.Client.Close()
		_ = s.redis.Container.Terminate(context.Background())
	}
}

func (s *RedisTRLSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisTRLSuite) TestUnknownTokenNotRevoked() {
	revoked, err := s.trl.IsRevoked(context.Background(), "jti-unknown")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *RedisTRLSuite) TestRevokedUntilExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-1", time.Hour))

	revoked, err := s.trl.IsRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)

	// Other tokens are unaffected.
	revoked, err = s.trl.IsRevoked(ctx, "jti-2")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *RedisTRLSuite) TestRevocationLapsesWithTTL() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-short", 500*time.Millisecond))

	revoked, err := s.trl.IsRevoked(ctx, "jti-short")
	s.Require().NoError(err)
	s.True(revoked)

	time.Sleep(700 * time.Millisecond)

	revoked, err = s.trl.IsRevoked(ctx, "jti-short")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *RedisTRLSuite) TestRejectsNonPositiveTTL() {
	err := s.trl.RevokeToken(context.Background(), "jti-1", 0)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *RedisTRLSuite) TestEmptyJTIIsNoOp() {
	ctx := context.Background()
	s.NoError(s.trl.RevokeToken(ctx, "", time.Hour))

	revoked, err := s.trl.IsRevoked(ctx, "")
	s.Require().NoError(err)
	s.False(revoked)
}
