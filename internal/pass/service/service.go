// Package service orchestrates the visitor pass lifecycle: issuance with a
// unique code, guarded attribute edits, cancellation, and deletion.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vigia/internal/pass/codegen"
	"vigia/internal/pass/metrics"
	"vigia/internal/pass/models"
	"vigia/internal/pass/store"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
	audit "vigia/pkg/platform/audit"
	"vigia/pkg/platform/sentinel"
	txrunner "vigia/pkg/platform/tx"
	"vigia/pkg/requestcontext"
)

// maxIssueAttempts bounds code-collision retries at the insert. The store's
// unique index is authoritative; the generator's pre-check only makes
// collisions rare, not impossible.
const maxIssueAttempts = 3

// Ledger is the pass module's read view of the access ledger. Consumed state
// and event counts are always read fresh through it, inside the same
// transaction as the mutation they guard.
type Ledger interface {
	HasConsumed(ctx context.Context, passID id.PassID) (bool, error)
	CountByPass(ctx context.Context, passID id.PassID) (int, error)
}

type CodeGenerator interface {
	Generate(ctx context.Context) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates pass lifecycle operations. Every mutation of an
// existing pass runs through the transaction runner keyed by pass ID so
// status checks and state changes commit atomically.
type Service struct {
	store  store.Store
	ledger Ledger
	codes  CodeGenerator
	runner txrunner.Runner

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. The code generator defaults to the store-checked
// random generator when nil.
func New(passes store.Store, ledger Ledger, runner txrunner.Runner, codes CodeGenerator, opts ...Option) *Service {
	s := &Service{store: passes, ledger: ledger, runner: runner, codes: codes}
	if s.codes == nil {
		s.codes = codegen.New(passes)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueInput carries the attributes of a new pass.
type IssueInput struct {
	HolderName    string
	HolderSurname string
	Kind          models.Kind
	ValidUntil    *time.Time
}

// Issue creates a pass owned by the requesting resident. The code is
// generated server-side; a collision at insert time regenerates and retries.
func (s *Service) Issue(ctx context.Context, owner id.ResidentID, input IssueInput) (*models.Pass, error) {
	now := requestcontext.Now(ctx)

	input.HolderName = strings.TrimSpace(input.HolderName)
	input.HolderSurname = strings.TrimSpace(input.HolderSurname)
	if input.HolderName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "holder name is required")
	}
	if input.HolderSurname == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "holder surname is required")
	}
	if input.Kind == models.KindDateLimited && input.ValidUntil == nil {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "date_limited passes require valid_until")
	}
	if input.ValidUntil != nil && !input.ValidUntil.After(now) {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "valid_until must be in the future")
	}

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		code, err := s.codes.Generate(ctx)
		if err != nil {
			return nil, err
		}

		pass := &models.Pass{
			ID:              id.PassID(uuid.New()),
			OwnerResidentID: owner,
			HolderName:      input.HolderName,
			HolderSurname:   input.HolderSurname,
			Kind:            input.Kind,
			ValidUntil:      input.ValidUntil,
			Code:            code,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		err = s.store.Create(ctx, pass)
		if err == nil {
			s.metrics.IncrementIssued(string(pass.Kind))
			s.logAudit(ctx, string(audit.EventPassIssued), audit.Event{
				Subject:  pass.ID.String(),
				PassCode: pass.Code,
				ActorID:  owner.String(),
			})
			return pass, nil
		}
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Lost the uniqueness race; regenerate and try again.
			s.metrics.IncrementCodeRetry()
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue pass")
	}
	return nil, dErrors.New(dErrors.CodeUnavailable, "could not allocate a unique pass code")
}

// Get returns a pass owned by the requesting resident, with derived status.
func (s *Service) Get(ctx context.Context, passID id.PassID, owner id.ResidentID) (*models.Pass, models.Status, error) {
	pass, err := s.findOwned(ctx, passID, owner)
	if err != nil {
		return nil, "", err
	}
	status, err := s.statusOf(ctx, pass)
	if err != nil {
		return nil, "", err
	}
	return pass, status, nil
}

// StatusOf derives the current status of any pass. Guard-facing: no ownership
// check.
func (s *Service) StatusOf(ctx context.Context, passID id.PassID) (*models.Pass, models.Status, error) {
	pass, err := s.store.FindByID(ctx, passID)
	if err != nil {
		return nil, "", translate(err)
	}
	status, err := s.statusOf(ctx, pass)
	if err != nil {
		return nil, "", err
	}
	return pass, status, nil
}

// ValidateCode resolves a pass code to the pass and its current status.
// Guard-facing: used at the gate before registering a movement.
func (s *Service) ValidateCode(ctx context.Context, code string) (*models.Pass, models.Status, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, "", dErrors.New(dErrors.CodeInvalidRequest, "pass code is required")
	}
	pass, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, "", translate(err)
	}
	status, err := s.statusOf(ctx, pass)
	if err != nil {
		return nil, "", err
	}
	return pass, status, nil
}

// View pairs a pass with its derived status for listings.
type View struct {
	Pass   *models.Pass
	Status models.Status
}

// ListMine returns the requesting resident's passes, newest first.
func (s *Service) ListMine(ctx context.Context, owner id.ResidentID) ([]View, error) {
	passes, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list passes")
	}
	views := make([]View, 0, len(passes))
	for _, pass := range passes {
		status, err := s.statusOf(ctx, pass)
		if err != nil {
			return nil, err
		}
		views = append(views, View{Pass: pass, Status: status})
	}
	return views, nil
}

// Cancel transitions an active pass to cancelled. The status guard and the
// flag write happen under one lock so a pass consumed in a concurrent
// registration is never cancelled.
func (s *Service) Cancel(ctx context.Context, passID id.PassID, owner id.ResidentID) (*models.Pass, error) {
	now := requestcontext.Now(ctx)

	var cancelled *models.Pass
	err := s.runner.RunInTx(ctx, passID.String(), func(ctx context.Context) error {
		pass, err := s.store.Execute(ctx, passID,
			func(pass *models.Pass) error {
				if err := requireOwner(pass, owner); err != nil {
					return err
				}
				consumed, err := s.ledger.HasConsumed(ctx, passID)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pass consumption")
				}
				return pass.CanCancel(now, consumed)
			},
			func(pass *models.Pass) {
				pass.ApplyCancel(now)
			})
		if err != nil {
			return err
		}
		cancelled = pass
		return nil
	})
	if err != nil {
		s.metrics.IncrementTransition("cancel", "rejected")
		return nil, translate(err)
	}

	s.metrics.IncrementTransition("cancel", "applied")
	s.logAudit(ctx, string(audit.EventPassCancelled), audit.Event{
		Subject:  passID.String(),
		PassCode: cancelled.Code,
		ActorID:  owner.String(),
	})
	return cancelled, nil
}

// Update edits pass attributes. Only active passes can be edited; the guard
// and the write share one transaction.
func (s *Service) Update(ctx context.Context, passID id.PassID, owner id.ResidentID, update models.Update) (*models.Pass, error) {
	now := requestcontext.Now(ctx)

	var updated *models.Pass
	err := s.runner.RunInTx(ctx, passID.String(), func(ctx context.Context) error {
		pass, err := s.store.Execute(ctx, passID,
			func(pass *models.Pass) error {
				if err := requireOwner(pass, owner); err != nil {
					return err
				}
				if err := validateUpdate(pass, update, now); err != nil {
					return err
				}
				consumed, err := s.ledger.HasConsumed(ctx, passID)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pass consumption")
				}
				return pass.CanMutate(now, consumed)
			},
			func(pass *models.Pass) {
				pass.ApplyUpdate(update, now)
			})
		if err != nil {
			return err
		}
		updated = pass
		return nil
	})
	if err != nil {
		s.metrics.IncrementTransition("update", "rejected")
		return nil, translate(err)
	}

	s.metrics.IncrementTransition("update", "applied")
	s.logAudit(ctx, string(audit.EventPassUpdated), audit.Event{
		Subject:  passID.String(),
		PassCode: updated.Code,
		ActorID:  owner.String(),
	})
	return updated, nil
}

// Delete removes a pass that has never been presented at the gate. Passes
// with ledger history can only be cancelled, so the record of their use
// survives.
func (s *Service) Delete(ctx context.Context, passID id.PassID, owner id.ResidentID) error {
	now := requestcontext.Now(ctx)

	var code string
	err := s.runner.RunInTx(ctx, passID.String(), func(ctx context.Context) error {
		pass, err := s.store.FindByID(ctx, passID)
		if err != nil {
			return err
		}
		if err := requireOwner(pass, owner); err != nil {
			return err
		}
		eventCount, err := s.ledger.CountByPass(ctx, passID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pass events")
		}
		consumed, err := s.ledger.HasConsumed(ctx, passID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pass consumption")
		}
		if err := pass.CanDelete(now, consumed, eventCount); err != nil {
			return err
		}
		code = pass.Code
		return s.store.Delete(ctx, passID)
	})
	if err != nil {
		s.metrics.IncrementTransition("delete", "rejected")
		return translate(err)
	}

	s.metrics.IncrementTransition("delete", "applied")
	s.logAudit(ctx, string(audit.EventPassDeleted), audit.Event{
		Subject:  passID.String(),
		PassCode: code,
		ActorID:  owner.String(),
	})
	return nil
}

func (s *Service) findOwned(ctx context.Context, passID id.PassID, owner id.ResidentID) (*models.Pass, error) {
	pass, err := s.store.FindByID(ctx, passID)
	if err != nil {
		return nil, translate(err)
	}
	if err := requireOwner(pass, owner); err != nil {
		return nil, err
	}
	return pass, nil
}

func (s *Service) statusOf(ctx context.Context, pass *models.Pass) (models.Status, error) {
	consumed := false
	if pass.Kind == models.KindSingleUse {
		var err error
		consumed, err = s.ledger.HasConsumed(ctx, pass.ID)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pass consumption")
		}
	}
	return pass.StatusAt(requestcontext.Now(ctx), consumed), nil
}

// requireOwner enforces that lifecycle mutations come from the issuing
// resident. Others get access_denied, not not_found: the pass exists, the
// caller just has no claim on it.
func requireOwner(pass *models.Pass, owner id.ResidentID) error {
	if pass.OwnerResidentID != owner {
		return dErrors.New(dErrors.CodeAccessDenied, "pass does not belong to the requesting resident")
	}
	return nil
}

// validateUpdate rejects edits that would leave the pass in an inconsistent
// shape, before any status guard runs.
func validateUpdate(pass *models.Pass, update models.Update, now time.Time) error {
	if update.HolderName != nil && strings.TrimSpace(*update.HolderName) == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "holder name must not be empty")
	}
	if update.HolderSurname != nil && strings.TrimSpace(*update.HolderSurname) == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "holder surname must not be empty")
	}
	if update.ValidUntil != nil && update.ClearValidUntil {
		return dErrors.New(dErrors.CodeInvalidRequest, "valid_until and clearing it are mutually exclusive")
	}
	if update.ValidUntil != nil && !update.ValidUntil.After(now) {
		return dErrors.New(dErrors.CodeInvalidRequest, "valid_until must be in the future")
	}

	kind := pass.Kind
	if update.Kind != nil {
		kind = *update.Kind
	}
	if kind == models.KindDateLimited {
		hasExpiry := pass.ValidUntil != nil
		if update.ClearValidUntil {
			hasExpiry = false
		}
		if update.ValidUntil != nil {
			hasExpiry = true
		}
		if !hasExpiry {
			return dErrors.New(dErrors.CodeInvalidRequest, "date_limited passes require valid_until")
		}
	}
	return nil
}

// translate maps store and model errors to the codes callers see. Transition
// guards surface as invariant violations inside the model; at the service
// boundary they become invalid-state errors.
func translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "pass not found")
	}
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.Wrap(err, dErrors.CodeInvalidState, dErrors.Message(err))
	}
	return err
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
	event.UserID = requestcontext.UserID(ctx)
	_ = s.auditPublisher.Emit(ctx, event)
}
