// Package models defines the access ledger records: immutable entry and exit
// events registered at the community gate.
package models

import (
	"time"

	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
)

// Direction of a movement through the gate.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// ParseDirection validates a direction string from a request.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case DirectionEntry, DirectionExit:
		return Direction(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidRequest, "direction must be entry or exit")
	}
}

const (
	MaxPlateLength = 20
	MaxNotesLength = 500
)

// AccessEvent is one movement through the gate. Events are append-only:
// identity, direction and timestamp are frozen at registration. Only the
// operational annotations (plate, notes) can be amended afterwards.
//
// Exactly one of ResidentID and PassID is set; the registering guard is
// always recorded. ConsumesPass marks the event that uses up a single-use
// pass; the ledger's uniqueness constraint on consuming events is what makes
// double consumption impossible under concurrency.
type AccessEvent struct {
	ID           id.EventID     `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Direction    Direction      `json:"direction"`
	ResidentID   *id.ResidentID `json:"resident_id,omitempty"`
	PassID       *id.PassID     `json:"pass_id,omitempty"`
	GuardID      id.GuardID     `json:"guard_id"`
	VehiclePlate string         `json:"vehicle_plate,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	ConsumesPass bool           `json:"-"`
}

// ValidateAnnotations checks the free-text fields shared by registration and
// amendment.
func ValidateAnnotations(plate, notes string) error {
	if len(plate) > MaxPlateLength {
		return dErrors.New(dErrors.CodeInvalidRequest, "vehicle plate exceeds 20 characters")
	}
	if len(notes) > MaxNotesLength {
		return dErrors.New(dErrors.CodeInvalidRequest, "notes exceed 500 characters")
	}
	return nil
}

// ConsumptionRule decides which movement direction consumes a single-use
// pass. The default burns the pass on entry; communities that let visitors
// in freely but track departures can burn it on exit instead.
type ConsumptionRule string

const (
	EntryConsumes ConsumptionRule = "entry_consumes"
	ExitConsumes  ConsumptionRule = "exit_consumes"
)

// Consumes reports whether a movement in the given direction uses up a
// single-use pass under this rule.
func (r ConsumptionRule) Consumes(direction Direction) bool {
	switch r {
	case ExitConsumes:
		return direction == DirectionExit
	default:
		return direction == DirectionEntry
	}
}
