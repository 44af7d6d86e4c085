// Package resolver turns the identifier presented at the gate into a known
// accessor: a resident from the directory or a visitor holding a pass.
package resolver

import (
	"context"
	"errors"
	"strings"

	dirmodels "vigia/internal/directory/models"
	passmodels "vigia/internal/pass/models"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
	"vigia/pkg/platform/sentinel"
)

// Kind of accessor at the gate.
type Kind string

const (
	KindResident Kind = "resident"
	KindVisitor  Kind = "visitor"
)

// Input is the raw identifier pair from a registration request. Exactly one
// field must be set; the shape is validated before any lookup runs, so a
// malformed request never reports "not found".
type Input struct {
	ResidentID string
	PassCode   string
}

// Validate enforces the exactly-one-identifier rule.
func (in Input) Validate() error {
	hasResident := strings.TrimSpace(in.ResidentID) != ""
	hasPass := strings.TrimSpace(in.PassCode) != ""
	if hasResident == hasPass {
		return dErrors.New(dErrors.CodeInvalidRequest,
			"exactly one of resident_id and pass_code must be provided")
	}
	return nil
}

// Accessor is a resolved gate identity. For visitors the pass carries the
// status-relevant state; for residents only the directory profile matters.
type Accessor struct {
	Kind       Kind
	ResidentID *id.ResidentID
	Pass       *passmodels.Pass
	FirstName  string
	LastName   string
}

type ResidentDirectory interface {
	FindResident(ctx context.Context, residentID id.ResidentID) (*dirmodels.Resident, error)
}

type PassReader interface {
	FindByCodeForUpdate(ctx context.Context, code string) (*passmodels.Pass, error)
}

// Resolver resolves gate identifiers against the directory and pass store.
type Resolver struct {
	residents ResidentDirectory
	passes    PassReader
}

func New(residents ResidentDirectory, passes PassReader) *Resolver {
	return &Resolver{residents: residents, passes: passes}
}

// Resolve validates the input shape and looks up the accessor. When called
// inside a transaction, the pass read locks the row so the caller's status
// evaluation holds until commit.
func (r *Resolver) Resolve(ctx context.Context, input Input) (*Accessor, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(input.ResidentID); raw != "" {
		residentID, err := id.ParseResidentID(raw)
		if err != nil {
			return nil, err
		}
		resident, err := r.residents.FindResident(ctx, residentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "resident not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resident")
		}
		return &Accessor{
			Kind:       KindResident,
			ResidentID: &resident.ID,
			FirstName:  resident.FirstName,
			LastName:   resident.LastName,
		}, nil
	}

	pass, err := r.passes.FindByCodeForUpdate(ctx, strings.TrimSpace(input.PassCode))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown pass code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pass")
	}
	return &Accessor{
		Kind:      KindVisitor,
		Pass:      pass,
		FirstName: pass.HolderName,
		LastName:  pass.HolderSurname,
	}, nil
}
