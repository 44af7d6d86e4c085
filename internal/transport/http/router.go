// Package httptransport assembles the HTTP surface: middleware stack,
// role-scoped route groups, and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vigia/pkg/platform/httputil"
	"vigia/pkg/platform/middleware/auth"
	"vigia/pkg/platform/middleware/metadata"
	"vigia/pkg/platform/middleware/request"
	"vigia/pkg/platform/middleware/requesttime"
)

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// AuthHandler registers the login and logout endpoints.
type AuthHandler interface {
	RegisterPublic(r chi.Router)
	RegisterAuthenticated(r chi.Router)
}

// PassHandler registers the resident pass CRUD and the guard validation
// endpoints.
type PassHandler interface {
	RegisterResident(r chi.Router)
	RegisterGuard(r chi.Router)
}

// AccessHandler registers the gate ledger endpoints.
type AccessHandler interface {
	RegisterGuard(r chi.Router)
	RegisterResident(r chi.Router)
}

// DirectoryHandler registers account and profile management.
type DirectoryHandler interface {
	Register(r chi.Router)
}

// Config carries everything the router needs.
type Config struct {
	Logger *slog.Logger

	Validator auth.JWTValidator
	Revoked   auth.TokenRevocationChecker

	Auth      AuthHandler
	Passes    PassHandler
	Access    AccessHandler
	Directory DirectoryHandler

	// Checks run on /healthz, keyed by dependency name. Nil values are
	// skipped so optional backends (Redis, Postgres) wire in only when
	// configured.
	Checks map[string]HealthChecker
}

// New builds the full router. Public routes carry only the baseline stack;
// everything else sits behind RequireAuth and a role guard.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(request.ID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", healthHandler(cfg.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		cfg.Auth.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Validator, cfg.Revoked, cfg.Logger))

		cfg.Auth.RegisterAuthenticated(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("resident"))
			cfg.Passes.RegisterResident(r)
			cfg.Access.RegisterResident(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("guard"))
			cfg.Passes.RegisterGuard(r)
			cfg.Access.RegisterGuard(r)
			cfg.Directory.Register(r)
		})
	})

	return otelhttp.NewHandler(r, "http.server")
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		overall := "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			overall = "degraded"
		}
		httputil.WriteJSON(w, code, map[string]any{
			"status": overall,
			"checks": status,
		})
	}
}
