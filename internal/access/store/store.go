// Package store persists the access ledger.
package store

import (
	"context"
	"time"

	"vigia/internal/access/models"
	id "vigia/pkg/domain"
)

// Filter narrows ledger listings. Nil fields match everything.
type Filter struct {
	ResidentID *id.ResidentID
	PassID     *id.PassID
	GuardID    *id.GuardID
	Direction  *models.Direction
	// Plate matches the vehicle plate case-insensitively.
	Plate string
	From  *time.Time
	To    *time.Time
	Limit int
}

// Store is the ledger persistence contract. The ledger is append-only:
// events are never deleted, and only their operational annotations change.
//
// Append enforces the single-consumption constraint at commit time: when the
// event carries ConsumesPass and another consuming event already exists for
// the same pass, it returns sentinel.ErrConflict and writes nothing. That
// constraint, not any earlier read, is what makes a single-use pass
// single-use under concurrency.
type Store interface {
	Append(ctx context.Context, event *models.AccessEvent) error

	// HasConsumed reports whether a consuming event exists for the pass.
	HasConsumed(ctx context.Context, passID id.PassID) (bool, error)

	// CountByPass counts all events referencing the pass.
	CountByPass(ctx context.Context, passID id.PassID) (int, error)

	FindByID(ctx context.Context, eventID id.EventID) (*models.AccessEvent, error)

	// UpdateDetails amends the operational annotations of an event. All
	// other fields are immutable.
	UpdateDetails(ctx context.Context, eventID id.EventID, plate, notes string) (*models.AccessEvent, error)

	// List returns events newest first.
	List(ctx context.Context, filter Filter) ([]*models.AccessEvent, error)

	// ClearResidentRefs nulls the resident reference on all events for a
	// deleted resident. The events themselves survive.
	ClearResidentRefs(ctx context.Context, residentID id.ResidentID) error
}
