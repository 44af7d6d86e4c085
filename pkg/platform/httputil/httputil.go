// Package httputil centralizes JSON encoding and error translation for the
// HTTP layer so handlers stay thin.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "vigia/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; gate terminals send small payloads.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteError translates a domain error chain into the wire error shape. The
// description is omitted for internal errors so infrastructure details never
// leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.ToHTTPStatus(err)

	body := errorBody{Error: string(dErrors.CodeInternal)}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		body.Error = string(domainErr.Code())
		if status < http.StatusInternalServerError {
			body.ErrorDescription = domainErr.Message()
		}
	}
	WriteJSON(w, status, body)
}

// DecodeAndPrepare decodes the request body into T, writing an invalid-request
// response and returning ok=false on failure. Handlers bail out immediately
// when ok is false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "malformed request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "malformed request body"))
		return req, false
	}
	return req, true
}
