// Package service registers gate movements against the access ledger. The
// registration path is the concurrency-critical core: two guards presenting
// the same single-use pass at once must produce exactly one consuming event.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigia/internal/access/metrics"
	"vigia/internal/access/models"
	"vigia/internal/access/resolver"
	"vigia/internal/access/store"
	dirmodels "vigia/internal/directory/models"
	passmodels "vigia/internal/pass/models"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
	audit "vigia/pkg/platform/audit"
	"vigia/pkg/platform/sentinel"
	txrunner "vigia/pkg/platform/tx"
	"vigia/pkg/requestcontext"
)

// GuardDirectory resolves the registering guard.
type GuardDirectory interface {
	FindGuard(ctx context.Context, guardID id.GuardID) (*dirmodels.Guard, error)
}

// Ledger is the write side of the access ledger.
type Ledger interface {
	Append(ctx context.Context, event *models.AccessEvent) error
	HasConsumed(ctx context.Context, passID id.PassID) (bool, error)
	FindByID(ctx context.Context, eventID id.EventID) (*models.AccessEvent, error)
	UpdateDetails(ctx context.Context, eventID id.EventID, plate, notes string) (*models.AccessEvent, error)
	List(ctx context.Context, filter store.Filter) ([]*models.AccessEvent, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// monotonicClock hands out strictly increasing timestamps so two events
// registered in the same instant still have a total order in the ledger.
type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *monotonicClock) next(now time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

// Service registers, lists and amends gate movements.
type Service struct {
	ledger   Ledger
	resolver *resolver.Resolver
	guards   GuardDirectory
	runner   txrunner.Runner
	rule     models.ConsumptionRule
	clock    monotonicClock

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

// WithConsumptionRule overrides which direction burns a single-use pass.
func WithConsumptionRule(rule models.ConsumptionRule) Option {
	return func(s *Service) {
		s.rule = rule
	}
}

// New constructs a Service. The default consumption rule burns single-use
// passes on entry.
func New(ledger Ledger, accessors *resolver.Resolver, guards GuardDirectory, runner txrunner.Runner, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		resolver: accessors,
		guards:   guards,
		runner:   runner,
		rule:     models.EntryConsumes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput is one movement to record.
type RegisterInput struct {
	ResidentID   string
	PassCode     string
	Direction    models.Direction
	VehiclePlate string
	Notes        string
}

// Receipt is the registration outcome handed back to the gate.
type Receipt struct {
	Event        *models.AccessEvent
	AccessorKind resolver.Kind
	FirstName    string
	LastName     string
	GuardName    string
	Message      string
}

// Register validates, resolves and appends one movement. For single-use
// passes the status check and the consuming append run inside one
// transaction keyed by the pass; the ledger's uniqueness constraint decides
// races that slip past the fresh read.
func (s *Service) Register(ctx context.Context, guardID id.GuardID, input RegisterInput) (*Receipt, error) {
	resolveInput := resolver.Input{ResidentID: input.ResidentID, PassCode: input.PassCode}
	if err := resolveInput.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateAnnotations(input.VehiclePlate, input.Notes); err != nil {
		return nil, err
	}

	guard, err := s.guards.FindGuard(ctx, guardID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "registering guard not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load guard")
	}

	// The first resolution only pins the lock key. The resolution inside
	// the transaction is the authoritative read.
	keyed, err := s.resolver.Resolve(ctx, resolveInput)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var receipt *Receipt
	err = s.runner.RunInTx(ctx, registrationKey(keyed), func(ctx context.Context) error {
		accessor, err := s.resolver.Resolve(ctx, resolveInput)
		if err != nil {
			return err
		}

		event := &models.AccessEvent{
			ID:           id.EventID(uuid.New()),
			Timestamp:    s.clock.next(now),
			Direction:    input.Direction,
			GuardID:      guardID,
			VehiclePlate: strings.TrimSpace(input.VehiclePlate),
			Notes:        strings.TrimSpace(input.Notes),
		}

		switch accessor.Kind {
		case resolver.KindResident:
			event.ResidentID = accessor.ResidentID
		case resolver.KindVisitor:
			pass := accessor.Pass
			if err := s.admitVisitor(ctx, pass, now); err != nil {
				return err
			}
			event.PassID = &pass.ID
			event.ConsumesPass = pass.Kind == passmodels.KindSingleUse && s.rule.Consumes(input.Direction)
		}

		if err := s.ledger.Append(ctx, event); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Another registration consumed the pass between our read
				// and this insert. The constraint, not the read, is final.
				return dErrors.Wrap(err, dErrors.CodeAccessDenied, "pass already consumed").
					Add("conflict", true)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append access event")
		}

		receipt = &Receipt{
			Event:        event,
			AccessorKind: accessor.Kind,
			FirstName:    accessor.FirstName,
			LastName:     accessor.LastName,
			GuardName:    guard.FirstName + " " + guard.LastName,
			Message: fmt.Sprintf("%s registered for %s %s %s",
				input.Direction, accessor.Kind, accessor.FirstName, accessor.LastName),
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAccessDenied) {
			reason := dErrors.Message(err)
			s.metrics.IncrementDenied(reason)
			s.logAudit(ctx, string(audit.EventAccessDenied), audit.Event{
				Decision: "denied",
				Reason:   reason,
				PassCode: strings.TrimSpace(input.PassCode),
				ActorID:  guardID.String(),
			})
		}
		return nil, err
	}

	s.metrics.IncrementRegistered(string(input.Direction), string(receipt.AccessorKind))
	s.logAudit(ctx, string(audit.EventAccessRegistered), audit.Event{
		Subject:  receipt.Event.ID.String(),
		Decision: "allowed",
		PassCode: strings.TrimSpace(input.PassCode),
		ActorID:  guardID.String(),
	})
	return receipt, nil
}

// admitVisitor evaluates the pass status from state read inside the current
// transaction and rejects anything but an active pass.
func (s *Service) admitVisitor(ctx context.Context, pass *passmodels.Pass, now time.Time) error {
	consumed := false
	if pass.Kind == passmodels.KindSingleUse {
		var err error
		consumed, err = s.ledger.HasConsumed(ctx, pass.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pass consumption")
		}
	}
	switch pass.StatusAt(now, consumed) {
	case passmodels.StatusActive:
		return nil
	case passmodels.StatusCancelled:
		return dErrors.New(dErrors.CodeAccessDenied, "pass revoked")
	case passmodels.StatusExpired:
		return dErrors.New(dErrors.CodeAccessDenied, "pass expired")
	default:
		return dErrors.New(dErrors.CodeAccessDenied, "pass already consumed")
	}
}

// registrationKey scopes transaction locking. Visitor registrations take the
// pass ID, the exact key the pass lifecycle operations lock on, so a
// cancellation and a registration for the same pass serialize and each sees
// the other's committed write. Resident movements serialize per resident.
func registrationKey(accessor *resolver.Accessor) string {
	if accessor.Kind == resolver.KindVisitor {
		return accessor.Pass.ID.String()
	}
	return "resident:" + accessor.ResidentID.String()
}

// History returns ledger events matching the filter, newest first. An empty
// history is a valid, empty result.
func (s *Service) History(ctx context.Context, filter store.Filter) ([]*models.AccessEvent, error) {
	events, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access events")
	}
	return events, nil
}

// Get returns one ledger event.
func (s *Service) Get(ctx context.Context, eventID id.EventID) (*models.AccessEvent, error) {
	event, err := s.ledger.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "access event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access event")
	}
	return event, nil
}

// AmendInput edits the operational annotations of an event. Nil fields keep
// their current value.
type AmendInput struct {
	VehiclePlate *string
	Notes        *string
}

// Amend updates plate and notes on an existing event. Identity, direction
// and timestamp are immutable; there is no path that changes them.
func (s *Service) Amend(ctx context.Context, eventID id.EventID, input AmendInput) (*models.AccessEvent, error) {
	var amended *models.AccessEvent
	err := s.runner.RunInTx(ctx, "event:"+eventID.String(), func(ctx context.Context) error {
		event, err := s.ledger.FindByID(ctx, eventID)
		if err != nil {
			return err
		}
		plate := event.VehiclePlate
		notes := event.Notes
		if input.VehiclePlate != nil {
			plate = strings.TrimSpace(*input.VehiclePlate)
		}
		if input.Notes != nil {
			notes = strings.TrimSpace(*input.Notes)
		}
		if err := models.ValidateAnnotations(plate, notes); err != nil {
			return err
		}
		amended, err = s.ledger.UpdateDetails(ctx, eventID, plate, notes)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "access event not found")
		}
		return nil, err
	}

	s.metrics.IncrementAmended()
	s.logAudit(ctx, string(audit.EventAccessAmended), audit.Event{
		Subject: eventID.String(),
	})
	return amended, nil
}

func (s *Service) logAudit(ctx context.Context, action string, event audit.Event) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"event", action,
			"log_type", "audit",
			"subject", event.Subject,
			"decision", event.Decision,
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
