package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pitabwire/staffdesk/internal/session"
	"github.com/pitabwire/staffdesk/model"
)

type fakePrincipal struct {
	authenticated bool
	roles         []string
	perms         model.PermissionSet
}

func (f fakePrincipal) IsAuthenticated() bool { return f.authenticated }

func (f fakePrincipal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		for _, have := range f.roles {
			if r == have {
				return true
			}
		}
	}
	return false
}

func (f fakePrincipal) HasAllRoles(roles ...string) bool {
	for _, r := range roles {
		if !f.HasAnyRole(r) {
			return false
		}
	}
	return true
}

func (f fakePrincipal) HasAnyPermission(perms ...model.Permission) bool {
	return f.perms.HasAny(perms...)
}

func (f fakePrincipal) HasAllPermissions(perms ...model.Permission) bool {
	return f.perms.HasAll(perms...)
}

func user(roles []string, perms ...string) fakePrincipal {
	set := model.PermissionSet{}
	for _, p := range perms {
		set[p] = true
	}
	return fakePrincipal{authenticated: true, roles: roles, perms: set}
}

type countingRecorder map[string]int

func (c countingRecorder) RecordAuthzDecision(outcome string) { c[outcome]++ }

func TestGate_unauthenticatedRedirectsToLogin(t *testing.T) {
	notes := &RecordingNotifier{}
	g := NewGate(WithNotifier(notes))

	for _, req := range []Requirement{{}, {Roles: []string{"ADMIN"}}, NeedPermission("employees", "read")} {
		d := g.CanActivate(context.Background(), fakePrincipal{}, req, "/employees/42?tab=history")

		if d.Allowed {
			t.Fatalf("unauthenticated principal allowed for %+v", req)
		}
		if d.Outcome != Unauthenticated {
			t.Errorf("Outcome = %s, want %s", d.Outcome, Unauthenticated)
		}
		want := "/login?returnUrl=%2Femployees%2F42%3Ftab%3Dhistory"
		if d.Redirect != want {
			t.Errorf("Redirect = %q, want %q", d.Redirect, want)
		}
	}
	if n := len(notes.Notices()); n != 3 {
		t.Errorf("notices = %d, want 3", n)
	}
}

func TestGate_nilPrincipalIsUnauthenticated(t *testing.T) {
	d := NewGate().CanActivate(context.Background(), nil, Requirement{}, "/")
	if d.Allowed || d.Outcome != Unauthenticated {
		t.Errorf("decision = %+v", d)
	}
}

func TestGate_roleMismatchRedirectsToUnauthorized(t *testing.T) {
	g := NewGate()
	req := Requirement{Roles: []string{"ADMIN"}, RequireAll: false}

	d := g.CanActivate(context.Background(), user([]string{"MANAGER"}), req, "/admin")

	if d.Allowed {
		t.Fatal("MANAGER allowed into ADMIN route")
	}
	if d.Outcome != AuthenticatedRoleCheckFail {
		t.Errorf("Outcome = %s, want %s", d.Outcome, AuthenticatedRoleCheckFail)
	}
	if d.Redirect != "/unauthorized" {
		t.Errorf("Redirect = %q, want /unauthorized", d.Redirect)
	}
}

func TestGate_outcomes(t *testing.T) {
	cases := []struct {
		name    string
		p       fakePrincipal
		req     Requirement
		allowed bool
		outcome Outcome
	}{
		{"no requirement", user(nil), Requirement{}, true, AuthenticatedNoRolesRequired},
		{"any role", user([]string{"MANAGER"}), Requirement{Roles: []string{"ADMIN", "MANAGER"}}, true, AuthenticatedRoleCheckPass},
		{"all roles missing one", user([]string{"ADMIN"}), Requirement{Roles: []string{"ADMIN", "AUDITOR"}, RequireAll: true}, false, AuthenticatedRoleCheckFail},
		{"all roles", user([]string{"ADMIN", "AUDITOR"}), Requirement{Roles: []string{"ADMIN", "AUDITOR"}, RequireAll: true}, true, AuthenticatedRoleCheckPass},
		{"permission pass", user(nil, "employees:read"), NeedPermission("employees", "read"), true, AuthenticatedPermissionCheckPass},
		{"permission wildcard", user(nil, "employees:*"), NeedPermission("employees", "delete"), true, AuthenticatedPermissionCheckPass},
		{"permission fail", user(nil, "employees:read"), NeedPermission("employees", "delete"), false, AuthenticatedPermissionCheckFail},
		{
			"role pass then permission fail",
			user([]string{"TRAINER"}, "course-events:read"),
			Requirement{
				Roles:       []string{"TRAINER"},
				Permissions: []model.Permission{{Resource: "course-events", Action: "read"}, {Resource: "course-events", Action: "update"}},
				RequireAll:  true,
			},
			false, AuthenticatedPermissionCheckFail,
		},
		{
			"role fail short-circuits permissions",
			user([]string{"MANAGER"}, "*"),
			Requirement{Roles: []string{"ADMIN"}, Permissions: []model.Permission{{Resource: "x", Action: "y"}}},
			false, AuthenticatedRoleCheckFail,
		},
	}

	rec := countingRecorder{}
	g := NewGate(WithRecorder(rec))
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := g.CanActivate(context.Background(), c.p, c.req, "/x")
			if d.Allowed != c.allowed || d.Outcome != c.outcome {
				t.Errorf("decision = %+v, want allowed=%v outcome=%s", d, c.allowed, c.outcome)
			}
			if !d.Allowed && d.Redirect != "/unauthorized" {
				t.Errorf("Redirect = %q", d.Redirect)
			}
		})
	}
	total := 0
	for _, n := range rec {
		total += n
	}
	if total != len(cases) {
		t.Errorf("recorded %d decisions, want %d", total, len(cases))
	}
}

func TestGate_distinctNotices(t *testing.T) {
	g := NewGate(WithPaths("/signin", "/denied"))
	ctx := context.Background()

	login := g.CanActivate(ctx, fakePrincipal{}, Requirement{}, "/a")
	role := g.CanActivate(ctx, user(nil), Requirement{Roles: []string{"ADMIN"}}, "/a")
	perm := g.CanActivate(ctx, user(nil), NeedPermission("a", "b"), "/a")

	if login.Notice == role.Notice || role.Notice == perm.Notice || login.Notice == perm.Notice {
		t.Errorf("notices not distinct: %q %q %q", login.Notice, role.Notice, perm.Notice)
	}
	if login.Notice != "请先登录" {
		t.Errorf("login notice = %q", login.Notice)
	}
	if login.Redirect != "/signin?returnUrl=%2Fa" || role.Redirect != "/denied" {
		t.Errorf("redirects = %q %q", login.Redirect, role.Redirect)
	}

	en := NewGate(WithLocale("en")).CanActivate(ctx, fakePrincipal{}, Requirement{}, "/a")
	if en.Notice != "Please log in first" {
		t.Errorf("en notice = %q", en.Notice)
	}
}

func TestRequirement_Validate(t *testing.T) {
	bad := []Requirement{
		{Roles: []string{""}},
		{Permissions: []model.Permission{{Resource: "employees"}}},
		{Permissions: []model.Permission{{Action: "read"}}},
	}
	for _, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", r)
		}
	}
	if err := (Requirement{Roles: []string{"ADMIN"}}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRouteTable_longestPrefix(t *testing.T) {
	rt, err := LoadRouteTable("testdata/routes.yaml")
	if err != nil {
		t.Fatalf("LoadRouteTable() error = %v", err)
	}
	if rt.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rt.Len())
	}

	req, ok := rt.Match("/employees/new?from=list")
	if !ok || req.Permissions[0].Action != "create" {
		t.Errorf("Match(/employees/new) = %+v, %v", req, ok)
	}
	req, ok = rt.Match("/employees/42")
	if !ok || req.Permissions[0].Action != "read" {
		t.Errorf("Match(/employees/42) = %+v, %v", req, ok)
	}
	if _, ok := rt.Match("/employeesx"); ok {
		t.Error("prefix must end on a segment boundary")
	}
	if _, ok := rt.Match("/unknown"); ok {
		t.Error("unknown route matched")
	}
	req, _ = rt.Match("/reports/")
	if !req.RequireAll || len(req.Roles) != 2 {
		t.Errorf("Match(/reports/) = %+v", req)
	}
}

func TestRouteTable_rejectsInvalid(t *testing.T) {
	if _, err := LoadRouteTable("testdata/bad_routes.yaml"); err == nil {
		t.Error("expected error for permission without action")
	}
	if _, err := LoadRouteTable("testdata/missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
	rt := NewRouteTable()
	if err := rt.Register("employees", Requirement{}); err == nil {
		t.Error("expected error for relative path")
	}
}

func TestGate_Authorize_unknownRouteNeedsLoginOnly(t *testing.T) {
	rt, _ := LoadRouteTable("testdata/routes.yaml")
	g := NewGate(WithRoutes(rt))
	ctx := context.Background()

	if d := g.Authorize(ctx, user(nil), "/dashboard"); !d.Allowed || d.Outcome != AuthenticatedNoRolesRequired {
		t.Errorf("unknown route decision = %+v", d)
	}
	if d := g.Authorize(ctx, user([]string{"MANAGER"}), "/admin/users"); d.Allowed {
		t.Errorf("admin route decision = %+v", d)
	}
}

func TestRequire_middleware(t *testing.T) {
	g := NewGate()
	handler := Require(g, NeedPermission("employees", "delete"))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	serve := func(s *session.Session) (*httptest.ResponseRecorder, model.ErrorEnvelope) {
		req := httptest.NewRequest(http.MethodPost, "/api/employees/delete", nil)
		if s != nil {
			req = req.WithContext(session.WithSession(req.Context(), s))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		var body struct {
			Error model.ErrorEnvelope `json:"error"`
		}
		json.NewDecoder(w.Body).Decode(&body)
		return w, body.Error
	}

	w, env := serve(nil)
	if w.Code != http.StatusUnauthorized || env.Code != model.ErrUnauthorized {
		t.Errorf("no session: status %d, code %s", w.Code, env.Code)
	}
	if env.Redirect != "/login?returnUrl=%2Fapi%2Femployees%2Fdelete" {
		t.Errorf("redirect = %q", env.Redirect)
	}

	viewer := session.New("s-1")
	viewer.SetUser(model.User{Username: "v"}, "tok", "", model.PermissionSet{"employees:read": true})
	w, env = serve(viewer)
	if w.Code != http.StatusForbidden || env.Code != model.ErrForbidden || env.Redirect != "/unauthorized" {
		t.Errorf("viewer: status %d, env %+v", w.Code, env)
	}

	admin := session.New("s-2")
	admin.SetUser(model.User{Username: "a"}, "tok", "", model.PermissionSet{"employees:*": true})
	if w, _ = serve(admin); w.Code != http.StatusNoContent {
		t.Errorf("admin: status %d, want 204", w.Code)
	}
}
