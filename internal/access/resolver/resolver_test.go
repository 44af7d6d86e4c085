package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dirmodels "vigia/internal/directory/models"
	dirstore "vigia/internal/directory/store"
	passmodels "vigia/internal/pass/models"
	passstore "vigia/internal/pass/store"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite
	directory *dirstore.InMemory
	passes    *passstore.InMemory
	resolver  *Resolver
	ctx       context.Context
}

func (s *ResolverSuite) SetupTest() {
	s.directory = dirstore.NewInMemory()
	s.passes = passstore.NewInMemory()
	s.resolver = New(s.directory, s.passes)
	s.ctx = context.Background()
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) TestInputShape() {
	s.Run("rejects both identifiers", func() {
		err := Input{ResidentID: uuid.NewString(), PassCode: "K7M2P9X"}.Validate()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})

	s.Run("rejects neither identifier", func() {
		err := Input{}.Validate()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})

	s.Run("shape errors win over lookups", func() {
		// Nothing exists in either store; a double identifier must still
		// come back as invalid_request, not not_found.
		_, err := s.resolver.Resolve(s.ctx, Input{ResidentID: uuid.NewString(), PassCode: "K7M2P9X"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})
}

func (s *ResolverSuite) TestResolveResident() {
	resident := &dirmodels.Resident{
		ID:        id.ResidentID(uuid.New()),
		FirstName: "Carla",
		LastName:  "Nunez",
		Unit:      "B-12",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.directory.CreateResident(s.ctx, resident))

	s.Run("resolves a known resident", func() {
		accessor, err := s.resolver.Resolve(s.ctx, Input{ResidentID: resident.ID.String()})
		s.Require().NoError(err)
		s.Equal(KindResident, accessor.Kind)
		s.Require().NotNil(accessor.ResidentID)
		s.Equal(resident.ID, *accessor.ResidentID)
		s.Equal("Carla", accessor.FirstName)
		s.Nil(accessor.Pass)
	})

	s.Run("unknown resident is not_found", func() {
		_, err := s.resolver.Resolve(s.ctx, Input{ResidentID: uuid.NewString()})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed resident id is invalid input", func() {
		_, err := s.resolver.Resolve(s.ctx, Input{ResidentID: "not-a-uuid"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ResolverSuite) TestResolvePass() {
	pass := &passmodels.Pass{
		ID:              id.PassID(uuid.New()),
		OwnerResidentID: id.ResidentID(uuid.New()),
		HolderName:      "Diego",
		HolderSurname:   "Paz",
		Kind:            passmodels.KindSingleUse,
		Code:            "K7M2P9X",
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	s.Require().NoError(s.passes.Create(s.ctx, pass))

	s.Run("resolves a pass code", func() {
		accessor, err := s.resolver.Resolve(s.ctx, Input{PassCode: "k7m2p9x"})
		s.Require().NoError(err)
		s.Equal(KindVisitor, accessor.Kind)
		s.Require().NotNil(accessor.Pass)
		s.Equal(pass.ID, accessor.Pass.ID)
		s.Equal("Diego", accessor.FirstName)
	})

	s.Run("unknown code is not_found", func() {
		_, err := s.resolver.Resolve(s.ctx, Input{PassCode: "ZZZZZZZ"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
