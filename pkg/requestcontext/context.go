// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithUserID(ctx, userID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "vigia/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	residentIDKey  struct{}
	guardIDKey     struct{}
	roleKey        struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyResidentID  = residentIDKey{}
	ContextKeyGuardID     = guardIDKey{}
	ContextKeyRole        = roleKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// UserID retrieves the authenticated account ID from the context.
// Returns the zero value (nil UUID) if not set.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// WithUserID injects an account ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// ResidentID retrieves the resident profile ID bound to the authenticated
// account, when the caller is a resident.
func ResidentID(ctx context.Context) id.ResidentID {
	if residentID, ok := ctx.Value(ContextKeyResidentID).(id.ResidentID); ok {
		return residentID
	}
	return id.ResidentID{}
}

// WithResidentID injects a resident profile ID into the context.
func WithResidentID(ctx context.Context, residentID id.ResidentID) context.Context {
	return context.WithValue(ctx, ContextKeyResidentID, residentID)
}

// GuardID retrieves the guard profile ID bound to the authenticated account,
// when the caller is a guard.
func GuardID(ctx context.Context) id.GuardID {
	if guardID, ok := ctx.Value(ContextKeyGuardID).(id.GuardID); ok {
		return guardID
	}
	return id.GuardID{}
}

// WithGuardID injects a guard profile ID into the context.
func WithGuardID(ctx context.Context, guardID id.GuardID) context.Context {
	return context.WithValue(ctx, ContextKeyGuardID, guardID)
}

// Role retrieves the authenticated role string ("resident" or "guard").
func Role(ctx context.Context) string {
	if role, ok := ctx.Value(ContextKeyRole).(string); ok {
		return role
	}
	return ""
}

// WithRole injects the authenticated role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// UserAgent retrieves the caller's User-Agent header value.
func UserAgent(ctx context.Context) string {
	if userAgent, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return userAgent
	}
	return ""
}

// WithUserAgent injects the caller's User-Agent header into the context.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, ContextKeyUserAgent, userAgent)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time when set, falling back to the wall
// clock. Services read time through this accessor so tests can freeze it.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
