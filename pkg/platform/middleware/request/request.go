// Package request provides request correlation middleware.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"vigia/pkg/requestcontext"
)

// headerRequestID is honored when a gateway upstream already assigned an ID.
const headerRequestID = "X-Request-Id"

// ID assigns every request a correlation ID and echoes it back in the
// response header so gate terminals can quote it in support reports.
func ID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request correlation ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
