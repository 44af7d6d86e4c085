// Package audit records who did what at the community gate. Events are
// emitted from domain logic, persisted by a store, and optionally relayed to
// Kafka through the outbox worker.
package audit

import (
	"context"
	"time"

	id "vigia/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. Categories
// drive retention and routing: access movements keep long retention, security
// events feed alerting, operations events can be sampled.
type EventCategory string

const (
	// CategoryAccess covers physical movement through the gate and the pass
	// decisions behind it. These are the community's legal record.
	CategoryAccess EventCategory = "access"

	// CategorySecurity covers authentication and account events relevant to
	// monitoring and forensics.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine administrative activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	PassCode  string
	Device    string
	RequestID string
	// ActorID tracks who performed the action when different from UserID,
	// e.g. the guard registering a movement for a resident.
	ActorID string
}

type AuditEvent string

const (
	// Auth events
	EventUserRegistered AuditEvent = "user_registered"
	EventLoginSucceeded AuditEvent = "login_succeeded"
	EventLoginFailed    AuditEvent = "login_failed"
	EventTokenRevoked   AuditEvent = "token_revoked"

	// Pass lifecycle events
	EventPassIssued    AuditEvent = "pass_issued"
	EventPassUpdated   AuditEvent = "pass_updated"
	EventPassCancelled AuditEvent = "pass_cancelled"
	EventPassDeleted   AuditEvent = "pass_deleted"

	// Access ledger events
	EventAccessRegistered AuditEvent = "access_registered"
	EventAccessDenied     AuditEvent = "access_denied"
	EventAccessAmended    AuditEvent = "access_amended"

	// Directory events
	EventResidentUpdated AuditEvent = "resident_updated"
	EventResidentDeleted AuditEvent = "resident_deleted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAccessRegistered: CategoryAccess,
	EventAccessDenied:     CategoryAccess,
	EventAccessAmended:    CategoryAccess,
	EventResidentDeleted:  CategoryAccess,

	EventLoginFailed:  CategorySecurity,
	EventTokenRevoked: CategorySecurity,

	EventUserRegistered:  CategoryOperations,
	EventLoginSucceeded:  CategoryOperations,
	EventPassIssued:      CategoryOperations,
	EventPassUpdated:     CategoryOperations,
	EventPassCancelled:   CategoryOperations,
	EventPassDeleted:     CategoryOperations,
	EventResidentUpdated: CategoryOperations,
}

// Category returns the EventCategory for this audit event. Unknown events
// default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations decide durability: the memory
// store for tests, the Postgres outbox for production.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
