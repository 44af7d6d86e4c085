// Package store persists visitor passes.
package store

import (
	"context"
	"time"

	"vigia/internal/pass/models"
	id "vigia/pkg/domain"
)

// Store is the pass persistence contract. Implementations return sentinel
// errors (pkg/platform/sentinel) for factual failures; services translate
// them into domain errors.
//
// Execute is the atomic validate-then-mutate primitive: the implementation
// holds its lock (mutex or SELECT FOR UPDATE) across both callbacks so the
// validated state is the state that gets mutated. All guarded transitions go
// through it so commit-time revalidation is structural, not optional.
type Store interface {
	// Create inserts a new pass. Returns sentinel.ErrAlreadyUsed when the
	// code collides with an existing pass.
	Create(ctx context.Context, pass *models.Pass) error

	FindByID(ctx context.Context, passID id.PassID) (*models.Pass, error)
	FindByCode(ctx context.Context, code string) (*models.Pass, error)

	// FindByCodeForUpdate reads the pass for a guarded registration: SQL
	// implementations lock the row for the surrounding transaction, the
	// in-memory store relies on the runner's key lock.
	FindByCodeForUpdate(ctx context.Context, code string) (*models.Pass, error)

	// CodeExists backs the code generator's advisory uniqueness check.
	CodeExists(ctx context.Context, code string) (bool, error)

	ListByOwner(ctx context.Context, owner id.ResidentID) ([]*models.Pass, error)

	// Execute loads the pass, runs validate, and if it returns nil applies
	// mutate and persists the result, all under one lock.
	Execute(ctx context.Context, passID id.PassID,
		validate func(pass *models.Pass) error,
		mutate func(pass *models.Pass)) (*models.Pass, error)

	// Delete removes a pass row. Callers enforce the event-free guard.
	Delete(ctx context.Context, passID id.PassID) error

	// RevokeOwnerless cancels a pass and clears its owner reference; used
	// when the owning resident is deleted but the pass has ledger history.
	RevokeOwnerless(ctx context.Context, passID id.PassID, now time.Time) error
}
