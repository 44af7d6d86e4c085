package testutil

import (
	"net/http"

	id "vigia/pkg/domain"
	"vigia/pkg/requestcontext"
)

// AsResident stamps the request context the way the auth middleware would for
// an authenticated resident. Invalid IDs are silently ignored.
func AsResident(req *http.Request, userID, residentID string) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsed)
	}
	if parsed, err := id.ParseResidentID(residentID); err == nil {
		ctx = requestcontext.WithResidentID(ctx, parsed)
	}
	ctx = requestcontext.WithRole(ctx, "resident")
	return req.WithContext(ctx)
}

// AsGuard stamps the request context for an authenticated guard.
func AsGuard(req *http.Request, userID, guardID string) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsed)
	}
	if parsed, err := id.ParseGuardID(guardID); err == nil {
		ctx = requestcontext.WithGuardID(ctx, parsed)
	}
	ctx = requestcontext.WithRole(ctx, "guard")
	return req.WithContext(ctx)
}
