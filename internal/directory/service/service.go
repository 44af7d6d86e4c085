// Package service manages the community directory: account registration,
// resident and guard profiles, and the cleanup that runs when a resident
// leaves the community.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vigia/internal/directory/models"
	"vigia/internal/directory/store"
	passmodels "vigia/internal/pass/models"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
	audit "vigia/pkg/platform/audit"
	"vigia/pkg/platform/sentinel"
	txrunner "vigia/pkg/platform/tx"
	"vigia/pkg/requestcontext"
)

const minPasswordLength = 8

// PassStore is the directory's view of the pass store, used when a resident
// is deleted: passes without gate history are removed, the rest are revoked
// and detached from the departed owner.
type PassStore interface {
	ListByOwner(ctx context.Context, owner id.ResidentID) ([]*passmodels.Pass, error)
	Delete(ctx context.Context, passID id.PassID) error
	RevokeOwnerless(ctx context.Context, passID id.PassID, now time.Time) error
}

// Ledger is the directory's view of the access ledger.
type Ledger interface {
	CountByPass(ctx context.Context, passID id.PassID) (int, error)
	ClearResidentRefs(ctx context.Context, residentID id.ResidentID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates directory operations.
type Service struct {
	store  store.Store
	passes PassStore
	ledger Ledger
	runner txrunner.Runner

	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// New constructs a Service.
func New(directory store.Store, passes PassStore, ledger Ledger, runner txrunner.Runner, opts ...Option) *Service {
	s := &Service{store: directory, passes: passes, ledger: ledger, runner: runner}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput carries a new account and its profile.
type RegisterInput struct {
	Username string
	Password string
	Role     models.Role

	FirstName string
	LastName  string

	// Resident profile
	Unit    string
	Phone   string
	Vehicle string
	Plate   string

	// Guard profile
	Badge string
}

// RegisterResult pairs the created account with its profile reference.
type RegisterResult struct {
	User       *models.User
	ResidentID *id.ResidentID
	GuardID    *id.GuardID
}

// Register creates a login account and its resident or guard profile in one
// transaction.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	now := requestcontext.Now(ctx)

	input.Username = strings.TrimSpace(strings.ToLower(input.Username))
	if input.Username == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "username is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user := &models.User{
		ID:           id.UserID(uuid.New()),
		Username:     input.Username,
		PasswordHash: string(hash),
		Role:         input.Role,
		CreatedAt:    now,
	}

	var result RegisterResult
	err = s.runner.RunInTx(ctx, input.Username, func(ctx context.Context) error {
		switch input.Role {
		case models.RoleResident:
			resident := &models.Resident{
				ID:        id.ResidentID(uuid.New()),
				FirstName: input.FirstName,
				LastName:  input.LastName,
				Unit:      input.Unit,
				Phone:     input.Phone,
				Vehicle:   input.Vehicle,
				Plate:     input.Plate,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := resident.Validate(); err != nil {
				return err
			}
			if err := s.store.CreateResident(ctx, resident); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create resident")
			}
			user.ResidentID = &resident.ID
			result.ResidentID = &resident.ID
		case models.RoleGuard:
			guard := &models.Guard{
				ID:        id.GuardID(uuid.New()),
				FirstName: input.FirstName,
				LastName:  input.LastName,
				Badge:     input.Badge,
				CreatedAt: now,
			}
			if err := guard.Validate(); err != nil {
				return err
			}
			if err := s.store.CreateGuard(ctx, guard); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create guard")
			}
			user.GuardID = &guard.ID
			result.GuardID = &guard.ID
		default:
			return dErrors.New(dErrors.CodeInvalidRequest, "role must be resident or guard")
		}

		if err := s.store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "username is already taken")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.User = user

	s.logAudit(ctx, string(audit.EventUserRegistered), audit.Event{
		UserID:  user.ID,
		Subject: user.Username,
	})
	return &result, nil
}

// GetResident returns one resident profile.
func (s *Service) GetResident(ctx context.Context, residentID id.ResidentID) (*models.Resident, error) {
	resident, err := s.store.FindResident(ctx, residentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "resident not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resident")
	}
	return resident, nil
}

// ListResidents returns residents matching the filter.
func (s *Service) ListResidents(ctx context.Context, filter store.ResidentFilter) ([]*models.Resident, error) {
	residents, err := s.store.ListResidents(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list residents")
	}
	return residents, nil
}

// UpdateResident edits a resident profile.
func (s *Service) UpdateResident(ctx context.Context, residentID id.ResidentID, update models.ResidentUpdate) (*models.Resident, error) {
	now := requestcontext.Now(ctx)

	var updated *models.Resident
	err := s.runner.RunInTx(ctx, residentID.String(), func(ctx context.Context) error {
		resident, err := s.store.FindResident(ctx, residentID)
		if err != nil {
			return err
		}
		resident.Apply(update, now)
		if err := resident.Validate(); err != nil {
			return err
		}
		if err := s.store.UpdateResident(ctx, resident); err != nil {
			return err
		}
		updated = resident
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "resident not found")
		}
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventResidentUpdated), audit.Event{
		Subject: residentID.String(),
	})
	return updated, nil
}

// DeleteResident removes a resident while keeping the gate history intact:
// ledger events lose their resident reference but survive, passes that were
// never presented are deleted, and passes with history are revoked and
// detached.
func (s *Service) DeleteResident(ctx context.Context, residentID id.ResidentID) error {
	now := requestcontext.Now(ctx)

	err := s.runner.RunInTx(ctx, residentID.String(), func(ctx context.Context) error {
		if _, err := s.store.FindResident(ctx, residentID); err != nil {
			return err
		}
		if err := s.ledger.ClearResidentRefs(ctx, residentID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach ledger events")
		}

		passes, err := s.passes.ListByOwner(ctx, residentID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list resident passes")
		}
		for _, pass := range passes {
			count, err := s.ledger.CountByPass(ctx, pass.ID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pass events")
			}
			if count == 0 {
				if err := s.passes.Delete(ctx, pass.ID); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete pass")
				}
				continue
			}
			if err := s.passes.RevokeOwnerless(ctx, pass.ID, now); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke pass")
			}
		}

		if err := s.store.DeleteUserByResident(ctx, residentID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete resident account")
		}
		return s.store.DeleteResident(ctx, residentID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "resident not found")
		}
		return err
	}

	s.logAudit(ctx, string(audit.EventResidentDeleted), audit.Event{
		Subject: residentID.String(),
	})
	return nil
}

// GetGuard returns one guard profile.
func (s *Service) GetGuard(ctx context.Context, guardID id.GuardID) (*models.Guard, error) {
	guard, err := s.store.FindGuard(ctx, guardID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "guard not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load guard")
	}
	return guard, nil
}

// ListGuards returns all guard profiles.
func (s *Service) ListGuards(ctx context.Context) ([]*models.Guard, error) {
	guards, err := s.store.ListGuards(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list guards")
	}
	return guards, nil
}

func (s *Service) logAudit(ctx context.Context, action string, event audit.Event) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"event", action,
			"log_type", "audit",
			"subject", event.Subject,
			"request_id", requestID,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	event.Action = action
	event.RequestID = requestID
	if event.UserID.IsNil() {
		event.UserID = requestcontext.UserID(ctx)
	}
	_ = s.auditPublisher.Emit(ctx, event)
}
