// Package metadata captures client metadata early in the middleware chain.
package metadata

import (
	"net/http"
	"strings"

	"vigia/pkg/requestcontext"
)

// ClientMetadata extracts the User-Agent from the request and adds it to the
// context; the auth service records it on login audit events.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithUserAgent(r.Context(), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest derives the caller IP, preferring the first entry of
// X-Forwarded-For when a proxy sits in front of the service.
func ClientIPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
