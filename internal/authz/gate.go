package authz

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/pitabwire/staffdesk/internal/observability"
	"github.com/pitabwire/staffdesk/model"
)

// Outcome names how a decision was reached.
type Outcome string

// Decision outcomes.
const (
	Unauthenticated                  Outcome = "UNAUTHENTICATED"
	AuthenticatedNoRolesRequired     Outcome = "AUTHENTICATED_NO_ROLES_REQUIRED"
	AuthenticatedRoleCheckPass       Outcome = "AUTHENTICATED_ROLE_CHECK_PASS"
	AuthenticatedRoleCheckFail       Outcome = "AUTHENTICATED_ROLE_CHECK_FAIL"
	AuthenticatedPermissionCheckPass Outcome = "AUTHENTICATED_PERMISSION_CHECK_PASS"
	AuthenticatedPermissionCheckFail Outcome = "AUTHENTICATED_PERMISSION_CHECK_FAIL"
)

// Principal is what the gate asks about the caller. *session.Session
// satisfies it.
type Principal interface {
	IsAuthenticated() bool
	HasAnyRole(roles ...string) bool
	HasAllRoles(roles ...string) bool
	HasAnyPermission(perms ...model.Permission) bool
	HasAllPermissions(perms ...model.Permission) bool
}

// Decision is the result of one gate evaluation.
type Decision struct {
	Allowed  bool    `json:"allowed"`
	Outcome  Outcome `json:"outcome"`
	Redirect string  `json:"redirect,omitempty"`
	Notice   string  `json:"notice,omitempty"`
}

// Recorder receives every decision outcome.
type Recorder interface {
	RecordAuthzDecision(outcome string)
}

// Gate evaluates requirements against a principal.
type Gate struct {
	routes           *RouteTable
	loginPath        string
	unauthorizedPath string
	notices          Notices
	notifier         Notifier
	recorder         Recorder
}

// Option configures a Gate.
type Option func(*Gate)

// WithRoutes sets the route table used by Authorize.
func WithRoutes(t *RouteTable) Option { return func(g *Gate) { g.routes = t } }

// WithPaths overrides the login and unauthorized redirect targets.
func WithPaths(login, unauthorized string) Option {
	return func(g *Gate) {
		if login != "" {
			g.loginPath = login
		}
		if unauthorized != "" {
			g.unauthorizedPath = unauthorized
		}
	}
}

// WithLocale picks the notice texts for locale.
func WithLocale(locale string) Option { return func(g *Gate) { g.notices = NoticesFor(locale) } }

// WithNotifier sets where denial notices are sent.
func WithNotifier(n Notifier) Option { return func(g *Gate) { g.notifier = n } }

// WithRecorder sets the decision recorder.
func WithRecorder(r Recorder) Option { return func(g *Gate) { g.recorder = r } }

// NewGate creates a Gate redirecting to /login and /unauthorized with the
// Chinese notice texts by default.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		routes:           NewRouteTable(),
		loginPath:        "/login",
		unauthorizedPath: "/unauthorized",
		notices:          NoticesFor("zh"),
		notifier:         LogNotifier{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Routes returns the gate's route table.
func (g *Gate) Routes() *RouteTable { return g.routes }

// Authorize looks target up in the route table and evaluates it. Targets
// the table does not know only require authentication.
func (g *Gate) Authorize(ctx context.Context, p Principal, target string) Decision {
	req, _ := g.routes.Match(target)
	return g.CanActivate(ctx, p, req, target)
}

// CanActivate evaluates req for p. target is the URL the caller tried to
// reach; it becomes the login returnUrl when p is not authenticated.
func (g *Gate) CanActivate(ctx context.Context, p Principal, req Requirement, target string) Decision {
	d := g.evaluate(p, req, target)
	observability.Annotate(ctx, observability.AttrAuthzOutcome.String(string(d.Outcome)))
	if g.recorder != nil {
		g.recorder.RecordAuthzDecision(string(d.Outcome))
	}
	if !d.Allowed {
		slog.Debug("authz: denied", "target", target, "outcome", d.Outcome)
		g.notifier.Notify(ctx, Notice{Outcome: d.Outcome, Message: d.Notice, Target: target})
	}
	return d
}

func (g *Gate) evaluate(p Principal, req Requirement, target string) Decision {
	if p == nil || !p.IsAuthenticated() {
		return Decision{
			Outcome:  Unauthenticated,
			Redirect: g.loginPath + "?returnUrl=" + url.QueryEscape(target),
			Notice:   g.notices.Login,
		}
	}
	if req.Open() {
		return Decision{Allowed: true, Outcome: AuthenticatedNoRolesRequired}
	}

	if len(req.Roles) > 0 {
		ok := p.HasAnyRole(req.Roles...)
		if req.RequireAll {
			ok = p.HasAllRoles(req.Roles...)
		}
		if !ok {
			return Decision{
				Outcome:  AuthenticatedRoleCheckFail,
				Redirect: g.unauthorizedPath,
				Notice:   g.notices.Role,
			}
		}
	}

	if len(req.Permissions) == 0 {
		return Decision{Allowed: true, Outcome: AuthenticatedRoleCheckPass}
	}

	ok := p.HasAnyPermission(req.Permissions...)
	if req.RequireAll {
		ok = p.HasAllPermissions(req.Permissions...)
	}
	if !ok {
		return Decision{
			Outcome:  AuthenticatedPermissionCheckFail,
			Redirect: g.unauthorizedPath,
			Notice:   g.notices.Permission,
		}
	}
	return Decision{Allowed: true, Outcome: AuthenticatedPermissionCheckPass}
}
