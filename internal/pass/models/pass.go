package models

import (
	"time"

	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
)

// Kind governs a pass's expiry and consumption semantics.
type Kind string

const (
	// KindSingleUse is consumed by its first entry crossing.
	KindSingleUse Kind = "single_use"

	// KindRecurring never expires and is never consumed.
	KindRecurring Kind = "recurring"

	// KindDateLimited is valid until its ValidUntil instant.
	KindDateLimited Kind = "date_limited"
)

// ParseKind validates a kind string from a request.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindSingleUse, KindRecurring, KindDateLimited:
		return Kind(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidRequest,
			"pass kind must be one of single_use, recurring, date_limited")
	}
}

// Status is the derived lifecycle state of a pass. It is never stored: it is
// recomputed from the pass attributes and its event history every time it is
// needed, so two reads of unchanged state always agree.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusUsed      Status = "used"
)

// Pass is a visitor invitation identified by a unique short code.
//
// Invariants:
//   - Code is globally unique for the lifetime of the system and immutable
//     once issued
//   - OwnerResidentID is immutable through the public API (cleared only when
//     the owning resident is deleted)
//   - Revoked is a distinct field from ValidUntil: cancellation and expiry
//     are independent concerns and must never share an encoding
//   - a single-use pass produces at most one consuming event, enforced by
//     the ledger's commit-time constraint, not by reads
type Pass struct {
	ID              id.PassID     `json:"id"`
	OwnerResidentID id.ResidentID `json:"owner_resident_id"`
	HolderName      string        `json:"holder_name"`
	HolderSurname   string        `json:"holder_surname"`
	Kind            Kind          `json:"kind"`
	ValidUntil      *time.Time    `json:"valid_until,omitempty"`
	Revoked         bool          `json:"revoked"`
	RevokedAt       *time.Time    `json:"revoked_at,omitempty"`
	Code            string        `json:"code"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// StatusAt derives the lifecycle status. consumed reports whether a consuming
// event exists in the ledger for this pass; callers must read it fresh from
// the ledger, never from an earlier point in the request.
//
// Precedence, first match wins: cancelled, expired, used, active.
func (p *Pass) StatusAt(now time.Time, consumed bool) Status {
	if p.Revoked {
		return StatusCancelled
	}
	if p.ValidUntil != nil && p.ValidUntil.Before(now) {
		return StatusExpired
	}
	if p.Kind == KindSingleUse && consumed {
		return StatusUsed
	}
	return StatusActive
}

// CanCancel checks the Active → Cancelled transition guard. A consumed
// single-use pass cannot be cancelled.
// Use with ApplyCancel in Execute callbacks.
func (p *Pass) CanCancel(now time.Time, consumed bool) error {
	switch p.StatusAt(now, consumed) {
	case StatusActive:
		return nil
	case StatusUsed:
		return dErrors.New(dErrors.CodeInvariantViolation, "pass already consumed, cannot cancel")
	case StatusCancelled:
		return dErrors.New(dErrors.CodeInvariantViolation, "pass is already cancelled")
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "pass has expired")
	}
}

// ApplyCancel transitions the pass to cancelled. Call CanCancel first.
func (p *Pass) ApplyCancel(now time.Time) {
	p.Revoked = true
	p.RevokedAt = &now
	p.UpdatedAt = now
}

// CanMutate checks that attribute edits are still permitted. Mutation is only
// allowed while the pass is Active.
func (p *Pass) CanMutate(now time.Time, consumed bool) error {
	if status := p.StatusAt(now, consumed); status != StatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "pass is "+string(status)+", attributes are frozen")
	}
	return nil
}

// Update describes a partial edit of pass attributes. Nil fields are left
// unchanged; ClearValidUntil removes the expiry instant.
type Update struct {
	HolderName      *string
	HolderSurname   *string
	Kind            *Kind
	ValidUntil      *time.Time
	ClearValidUntil bool
}

// ApplyUpdate mutates the pass attributes. Call CanMutate first.
func (p *Pass) ApplyUpdate(update Update, now time.Time) {
	if update.HolderName != nil {
		p.HolderName = *update.HolderName
	}
	if update.HolderSurname != nil {
		p.HolderSurname = *update.HolderSurname
	}
	if update.Kind != nil {
		p.Kind = *update.Kind
	}
	if update.ClearValidUntil {
		p.ValidUntil = nil
	} else if update.ValidUntil != nil {
		validUntil := *update.ValidUntil
		p.ValidUntil = &validUntil
	}
	p.UpdatedAt = now
}

// CanDelete checks the deletion guard: only an Active pass with zero access
// events may be removed.
func (p *Pass) CanDelete(now time.Time, consumed bool, eventCount int) error {
	if err := p.CanMutate(now, consumed); err != nil {
		return err
	}
	if eventCount > 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "pass has access events, it can only be cancelled")
	}
	return nil
}
