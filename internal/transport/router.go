package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/staffdesk/internal/authz"
	"github.com/pitabwire/staffdesk/internal/config"
	"github.com/pitabwire/staffdesk/internal/feature"
	"github.com/pitabwire/staffdesk/internal/observability"
	"github.com/pitabwire/staffdesk/internal/query"
	"github.com/pitabwire/staffdesk/internal/session"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Auth      feature.Authenticator
	Sessions  *session.Manager
	Cookie    *SessionCookie
	Gate      *authz.Gate
	Resources []query.Resource
	// Metrics is optional. When nil no HTTP metrics are recorded and
	// /metrics is not mounted.
	Metrics   *observability.Metrics
	Readiness observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// session middleware.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()
	cfg := deps.Config

	// Global middleware: applied to all routes including health.
	r.Use(Recovery)
	r.Use(CORS(cfg.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	if deps.Metrics != nil && cfg.Observability.Metrics.Enabled {
		r.Handle(cfg.Observability.Metrics.Path, observability.Handler())
	}

	// Login and logout read the cookie themselves.
	r.Group(func(r chi.Router) {
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))
		r.Use(RequestLogging)

		r.Post("/api/auth/login", handleLogin(deps.Auth, deps.Sessions, deps.Cookie))
		r.Post("/api/auth/logout", handleLogout(deps.Auth, deps.Sessions, deps.Cookie))
	})

	fail := &failureWriter{
		sessions:         deps.Sessions,
		cookie:           deps.Cookie,
		loginPath:        cfg.Authorization.LoginPath,
		unauthorizedPath: cfg.Authorization.UnauthorizedPath,
	}

	r.Group(func(r chi.Router) {
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))
		r.Use(RestoreSession(deps.Sessions, deps.Cookie))
		r.Use(RequestLogging)

		r.Get("/api/auth/me", handleMe(cfg.Authorization.LoginPath))
		r.Get("/ui/routes/authorize", handleAuthorize(deps.Gate))

		for _, res := range deps.Resources {
			mountResource(r, deps.Gate, res, fail)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "no such endpoint")
	})

	return r
}
