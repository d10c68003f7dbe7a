package integration

import (
	"net/http"
	"testing"
)

func TestHarness_Startup(t *testing.T) {
	h := NewTestHarness(t)

	// Verify the server is running.
	resp := h.NewBrowser().GET("/ui/health")
	h.AssertStatus(t, resp, http.StatusOK)
}

func TestHarness_HealthEndpoints(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()

	t.Run("health", func(t *testing.T) {
		resp := b.GET("/ui/health")
		var body map[string]string
		h.AssertJSON(t, resp, http.StatusOK, &body)
		if body["status"] != "ok" {
			t.Errorf("health status = %q, want ok", body["status"])
		}
	})

	t.Run("ready", func(t *testing.T) {
		resp := b.GET("/ui/ready")
		var body struct {
			Status string         `json:"status"`
			Checks map[string]any `json:"checks"`
		}
		h.AssertJSON(t, resp, http.StatusOK, &body)
		if body.Status != "ready" {
			t.Errorf("ready status = %q, want ready", body.Status)
		}
		for _, name := range []string{"route_table", "role_policy", "session_store", "backend"} {
			if _, ok := body.Checks[name]; !ok {
				t.Errorf("missing readiness check %q", name)
			}
		}
	})
}

func TestHarness_LoginAndMe(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()

	t.Run("anonymous me returns 401 with login redirect", func(t *testing.T) {
		body := h.AssertError(t, b.GET("/api/auth/me"), http.StatusUnauthorized, "UNAUTHORIZED")
		if body.Error.Redirect != h.Config().Authorization.LoginPath {
			t.Errorf("redirect = %q, want %q", body.Error.Redirect, h.Config().Authorization.LoginPath)
		}
	})

	t.Run("login returns the session snapshot", func(t *testing.T) {
		var snap map[string]any
		h.AssertJSON(t, b.Login("admin", "admin123"), http.StatusOK, &snap)

		if snap["authenticated"] != true {
			t.Errorf("authenticated = %v, want true", snap["authenticated"])
		}
		if _, leaked := snap["token"]; leaked {
			t.Error("login response must not carry the backend token")
		}
		user, _ := snap["user"].(map[string]any)
		if user["displayName"] != "HR Admin" {
			t.Errorf("user = %s, want camelCase displayName", FormatJSON(user))
		}
		if b.Cookie(h.Config().Session.CookieName) == "" {
			t.Error("expected session cookie after login")
		}
	})

	t.Run("me returns the logged in user", func(t *testing.T) {
		var snap struct {
			Authenticated bool     `json:"authenticated"`
			Permissions   []string `json:"permissions"`
			User          struct {
				Username string   `json:"username"`
				Roles    []string `json:"roles"`
			} `json:"user"`
		}
		h.AssertJSON(t, b.GET("/api/auth/me"), http.StatusOK, &snap)
		if snap.User.Username != "admin" {
			t.Errorf("username = %q, want admin", snap.User.Username)
		}
		if len(snap.Permissions) == 0 {
			t.Error("expected permissions expanded from roles")
		}
	})

	t.Run("logout ends the session", func(t *testing.T) {
		h.AssertStatus(t, b.POST("/api/auth/logout", nil), http.StatusNoContent)
		h.AssertError(t, b.GET("/api/auth/me"), http.StatusUnauthorized, "UNAUTHORIZED")
		h.Backend.AssertCalled(t, "auth/logout", 1)
	})
}

func TestHarness_LoginFailures(t *testing.T) {
	h := NewTestHarness(t)

	t.Run("wrong password", func(t *testing.T) {
		b := h.NewBrowser()
		h.AssertError(t, b.Login("admin", "nope"), http.StatusUnauthorized, "UNAUTHORIZED")
		if b.Cookie(h.Config().Session.CookieName) != "" {
			t.Error("failed login must not set a session cookie")
		}
	})

	t.Run("missing password never reaches the backend", func(t *testing.T) {
		h.Backend.Reset()
		h.AssertError(t, h.NewBrowser().Login("admin", ""), http.StatusBadRequest, "BAD_REQUEST")
		h.Backend.AssertNotCalled(t, "auth/login")
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		h.Backend.OnPath("auth/login").RespondOK(map[string]any{
			"token": h.issuer.ExpiredToken(t, "admin"),
			"user":  map[string]any{"id": "u-01", "username": "admin", "roles": []string{"hr_admin"}},
		})
		h.AssertError(t, h.NewBrowser().Login("admin", "admin123"), http.StatusUnauthorized, "UNAUTHORIZED")
	})
}

func TestHarness_RedisSessions(t *testing.T) {
	h := NewTestHarness(t, WithRedisSessions())
	b := h.LoginAs("viewer")

	var snap struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	h.AssertJSON(t, b.GET("/api/auth/me"), http.StatusOK, &snap)
	if snap.User.Username != "viewer" {
		t.Errorf("username = %q, want viewer", snap.User.Username)
	}

	h.AssertStatus(t, b.POST("/api/auth/logout", nil), http.StatusNoContent)
	h.AssertStatus(t, b.GET("/api/auth/me"), http.StatusUnauthorized)
}
