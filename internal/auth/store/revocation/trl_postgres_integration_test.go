//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigia/internal/auth/store/revocation"
	"vigia/pkg/testutil/containers"
)

type PostgresTRLSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	now      time.Time
	trl      *revocation.PostgresTRL
}

func TestPostgresTRLSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresTRLSuite))
}

func (s *PostgresTRLSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
}

func (s *PostgresTRLSuite) TearDownSuite() {
	if s.postgres != nil {
		_ = s.postgres.DB.Close()
		_ = s.postgres.Container.Terminate(context.Background())
	}
}

func (s *PostgresTRLSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "token_revocations"))
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.trl = revocation.NewPostgresTRL(s.postgres.DB,
		revocation.WithPostgresClock(func() time.Time { return s.now }))
}

func (s *PostgresTRLSuite) TestRevokedUntilExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-1", time.Hour))

	revoked, err := s.trl.IsRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)

	// Past the TTL the token itself has expired, so the entry stops counting.
	s.now = s.now.Add(2 * time.Hour)
	revoked, err = s.trl.IsRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *PostgresTRLSuite) TestRevokeIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-1", time.Minute))
	// A second revocation extends the entry instead of failing.
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-1", time.Hour))

	s.now = s.now.Add(30 * time.Minute)
	revoked, err := s.trl.IsRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *PostgresTRLSuite) TestPruneExpired() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-old", time.Minute))
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-live", time.Hour))

	s.now = s.now.Add(30 * time.Minute)
	pruned, err := s.trl.PruneExpired(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), pruned)

	revoked, err := s.trl.IsRevoked(ctx, "jti-live")
	s.Require().NoError(err)
	s.True(revoked)
}
