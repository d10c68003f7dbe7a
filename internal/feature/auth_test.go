package feature

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/staffdesk/model"
)

type recordingCaller struct {
	paths []string
	reply model.LoginResult
	err   error
}

func (c *recordingCaller) Call(_ context.Context, path string, _, out any) error {
	c.paths = append(c.paths, path)
	if c.err != nil {
		return c.err
	}
	if out != nil {
		raw, _ := json.Marshal(c.reply)
		return json.Unmarshal(raw, out)
	}
	return nil
}

func TestMockAuth_login(t *testing.T) {
	a := NewMockAuth(time.Hour)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	res, err := a.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.Username != "admin" || res.Token == "" || res.RefreshToken == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(res.Token, claims); err != nil {
		t.Fatalf("parse token: %v", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		t.Fatalf("token has no exp: %v", err)
	}
	if !exp.Time.Equal(fixed.Add(time.Hour)) {
		t.Errorf("exp = %v, want %v", exp.Time, fixed.Add(time.Hour))
	}
}

func TestMockAuth_wrongPassword(t *testing.T) {
	a := NewMockAuth(time.Hour)
	_, err := a.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "nope"})
	if !model.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	_, err = a.Login(context.Background(), model.LoginRequest{Username: "ghost", Password: "admin123"})
	if !model.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 APIError for unknown user, got %v", err)
	}
}

func TestBackendAuth_callsAuthPaths(t *testing.T) {
	c := &recordingCaller{reply: model.LoginResult{
		Token: "t", RefreshToken: "r",
		User: model.User{ID: "7", Username: "lee", Roles: []string{"viewer"}},
	}}
	a := NewBackendAuth(c)

	res, err := a.Login(context.Background(), model.LoginRequest{Username: "lee", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "t" || res.User.Username != "lee" {
		t.Errorf("unexpected result %+v", res)
	}
	if err := a.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(c.paths) != 2 || c.paths[0] != LoginPath || c.paths[1] != LogoutPath {
		t.Errorf("paths = %v", c.paths)
	}
}
