// Package store persists the community directory.
package store

import (
	"context"

	"vigia/internal/directory/models"
	id "vigia/pkg/domain"
)

// ResidentFilter narrows resident listings. Zero fields match everything.
type ResidentFilter struct {
	// Name matches first or last name, case-insensitive substring.
	Name string
	// Unit matches the unit label exactly.
	Unit string
}

// Store is the directory persistence contract. Implementations return
// sentinel errors for factual failures.
type Store interface {
	// CreateUser inserts an account. Returns sentinel.ErrConflict when the
	// username is taken.
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByID(ctx context.Context, userID id.UserID) (*models.User, error)
	DeleteUserByResident(ctx context.Context, residentID id.ResidentID) error

	CreateResident(ctx context.Context, resident *models.Resident) error
	FindResident(ctx context.Context, residentID id.ResidentID) (*models.Resident, error)
	ListResidents(ctx context.Context, filter ResidentFilter) ([]*models.Resident, error)
	UpdateResident(ctx context.Context, resident *models.Resident) error
	DeleteResident(ctx context.Context, residentID id.ResidentID) error

	CreateGuard(ctx context.Context, guard *models.Guard) error
	FindGuard(ctx context.Context, guardID id.GuardID) (*models.Guard, error)
	ListGuards(ctx context.Context) ([]*models.Guard, error)
}
