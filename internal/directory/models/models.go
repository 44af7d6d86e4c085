// Package models defines the community directory: login accounts and the
// resident and guard profiles they map to.
package models

import (
	"strings"
	"time"

	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
)

// Role determines which API surface an account can reach.
type Role string

const (
	RoleResident Role = "resident"
	RoleGuard    Role = "guard"
)

// ParseRole validates a role string from a request.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleResident, RoleGuard:
		return Role(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidRequest, "role must be resident or guard")
	}
}

// User is a login account. Exactly one of ResidentID and GuardID is set,
// matching the role.
type User struct {
	ID           id.UserID
	Username     string
	PasswordHash string
	Role         Role
	ResidentID   *id.ResidentID
	GuardID      *id.GuardID
	CreatedAt    time.Time
}

// Resident is a community member who can issue visitor passes.
type Resident struct {
	ID        id.ResidentID `json:"id"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Unit      string        `json:"unit"`
	Phone     string        `json:"phone,omitempty"`
	Vehicle   string        `json:"vehicle,omitempty"`
	Plate     string        `json:"plate,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Validate checks required resident fields.
func (r *Resident) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "first name is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "last name is required")
	}
	if strings.TrimSpace(r.Unit) == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "unit is required")
	}
	return nil
}

// ResidentUpdate is a partial edit of a resident profile.
type ResidentUpdate struct {
	FirstName *string
	LastName  *string
	Unit      *string
	Phone     *string
	Vehicle   *string
	Plate     *string
}

// Apply mutates the resident in place.
func (r *Resident) Apply(update ResidentUpdate, now time.Time) {
	if update.FirstName != nil {
		r.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		r.LastName = *update.LastName
	}
	if update.Unit != nil {
		r.Unit = *update.Unit
	}
	if update.Phone != nil {
		r.Phone = *update.Phone
	}
	if update.Vehicle != nil {
		r.Vehicle = *update.Vehicle
	}
	if update.Plate != nil {
		r.Plate = *update.Plate
	}
	r.UpdatedAt = now
}

// Guard is a gate officer who registers movements.
type Guard struct {
	ID        id.GuardID `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Badge     string     `json:"badge,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate checks required guard fields.
func (g *Guard) Validate() error {
	if strings.TrimSpace(g.FirstName) == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "first name is required")
	}
	if strings.TrimSpace(g.LastName) == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "last name is required")
	}
	return nil
}
