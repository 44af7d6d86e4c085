// Package domain holds the typed identifiers shared across modules.
//
// Each ID is a distinct type over uuid.UUID so the compiler rejects
// cross-assignment (a PassID can never be passed where a ResidentID is
// expected). Parse functions enforce the invariant that IDs are valid,
// non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "vigia/pkg/domain-errors"
)

type (
	// UserID identifies a login account (resident or guard).
	UserID uuid.UUID

	// ResidentID identifies a resident profile.
	ResidentID uuid.UUID

	// GuardID identifies a guard profile.
	GuardID uuid.UUID

	// PassID identifies a visitor pass.
	PassID uuid.UUID

	// EventID identifies an access event in the ledger.
	EventID uuid.UUID
)

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id ResidentID) String() string { return uuid.UUID(id).String() }
func (id GuardID) String() string    { return uuid.UUID(id).String() }
func (id PassID) String() string     { return uuid.UUID(id).String() }
func (id EventID) String() string    { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ResidentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id GuardID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PassID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseUserID parses and validates a user ID string.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user id")
	return UserID(parsed), err
}

// ParseResidentID parses and validates a resident ID string.
func ParseResidentID(raw string) (ResidentID, error) {
	parsed, err := parseUUID(raw, "resident id")
	return ResidentID(parsed), err
}

// ParseGuardID parses and validates a guard ID string.
func ParseGuardID(raw string) (GuardID, error) {
	parsed, err := parseUUID(raw, "guard id")
	return GuardID(parsed), err
}

// ParsePassID parses and validates a pass ID string.
func ParsePassID(raw string) (PassID, error) {
	parsed, err := parseUUID(raw, "pass id")
	return PassID(parsed), err
}

// ParseEventID parses and validates an access event ID string.
func ParseEventID(raw string) (EventID, error) {
	parsed, err := parseUUID(raw, "event id")
	return EventID(parsed), err
}

func parseUUID(raw, label string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, label+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be the nil UUID")
	}
	return parsed, nil
}
