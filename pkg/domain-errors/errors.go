// Package domainerrors defines the coded domain errors services return to
// callers. Conventionally imported as dErrors.
//
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate those facts into coded errors that carry a stable
// machine-readable code plus a human-readable message. The HTTP layer maps
// codes to status codes with ToHTTPStatus and never invents its own.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable classification of a domain error.
type Code string

const (
	// CodeInvalidRequest marks a malformed request shape (caller bug, not
	// retryable as-is).
	CodeInvalidRequest Code = "invalid_request"

	// CodeInvalidInput marks a field-level validation failure.
	CodeInvalidInput Code = "invalid_input"

	// CodeNotFound marks an unknown code, handle, or ID.
	CodeNotFound Code = "not_found"

	// CodeAccessDenied marks a lifecycle rule violation at the gate. The
	// message carries the reason tag (revoked, expired, already consumed).
	CodeAccessDenied Code = "access_denied"

	// CodeConflict marks a lost concurrency race or a uniqueness collision.
	CodeConflict Code = "conflict"

	// CodeInvalidState marks a mutation or delete attempted on an entity in a
	// state that forbids it.
	CodeInvalidState Code = "invalid_state"

	// CodeInvariantViolation marks a model-level transition guard failure;
	// services translate it to CodeInvalidState for callers.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeUnauthorized marks missing or invalid authentication.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden marks an authenticated caller lacking the required role.
	CodeForbidden Code = "forbidden"

	// CodeUnavailable marks an infrastructure failure; retryable by the caller.
	CodeUnavailable Code = "unavailable"

	// CodeTimeout marks an aborted operation (context cancelled or deadline).
	CodeTimeout Code = "timeout"

	// CodeInternal marks an unexpected failure; details stay server-side.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a code, message, optional metadata, and an
// optional wrapped cause.
type Error struct {
	code    Code
	message string
	meta    map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the machine-readable code.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable message without the code prefix.
func (e *Error) Message() string { return e.message }

// New creates a coded domain error.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap creates a coded domain error around a cause. The cause stays reachable
// through errors.Is / errors.Unwrap so sentinel checks keep working.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// Add attaches a metadata key/value to the error and returns it for chaining.
func (e *Error) Add(key string, value any) *Error {
	if e.meta == nil {
		e.meta = make(map[string]any, 1)
	}
	e.meta[key] = value
	return e
}

// Load reads a metadata value previously attached with Add. The second return
// reports whether the key was present on any *Error in the chain.
func Load(err error, key string) (any, bool) {
	for err != nil {
		var domainErr *Error
		if errors.As(err, &domainErr) {
			if value, ok := domainErr.meta[key]; ok {
				return value, true
			}
			err = domainErr.cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return nil, false
}

// Message returns the first *Error message in the chain, or the plain error
// text when no domain error is present.
func Message(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var domainErr *Error
		if errors.As(err, &domainErr) {
			if domainErr.code == code {
				return true
			}
			err = domainErr.cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Is delegates to errors.Is; kept so call sites can stay on one import.
func Is(err, target error) bool { return errors.Is(err, target) }

// ToHTTPStatus maps a domain error chain to an HTTP status code. Unknown
// errors map to 500.
func ToHTTPStatus(err error) int {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}
	switch domainErr.code {
	case CodeInvalidRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAccessDenied, CodeForbidden:
		return http.StatusForbidden
	case CodeConflict, CodeInvalidState, CodeInvariantViolation:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
