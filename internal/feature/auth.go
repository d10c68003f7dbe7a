package feature

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/staffdesk/internal/backend"
	"github.com/pitabwire/staffdesk/model"
)

// Backend auth paths.
const (
	LoginPath  = "auth/login"
	LogoutPath = "auth/logout"
)

// Authenticator exchanges credentials for a token and ends backend sessions.
type Authenticator interface {
	Login(ctx context.Context, req model.LoginRequest) (model.LoginResult, error)
	// Logout ends the backend session of the token carried by ctx.
	Logout(ctx context.Context) error
}

// BackendAuth authenticates against the backend's auth endpoints.
type BackendAuth struct {
	caller backend.Caller
}

// NewBackendAuth returns an Authenticator backed by caller.
func NewBackendAuth(caller backend.Caller) *BackendAuth {
	return &BackendAuth{caller: caller}
}

// Login implements Authenticator.
func (a *BackendAuth) Login(ctx context.Context, req model.LoginRequest) (model.LoginResult, error) {
	var res model.LoginResult
	if err := a.caller.Call(ctx, LoginPath, req, &res); err != nil {
		return model.LoginResult{}, err
	}
	return res, nil
}

// Logout implements Authenticator.
func (a *BackendAuth) Logout(ctx context.Context) error {
	return a.caller.Call(ctx, LogoutPath, struct{}{}, nil)
}

type mockAccount struct {
	password string
	user     model.User
}

// MockAuth accepts a fixed set of demo accounts and issues signed tokens
// that expire after ttl.
type MockAuth struct {
	accounts map[string]mockAccount
	key      []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewMockAuth returns the offline Authenticator used in mock mode.
func NewMockAuth(ttl time.Duration) *MockAuth {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return &MockAuth{
		accounts: map[string]mockAccount{
			"admin": {password: "admin123", user: model.User{
				ID: "u-01", Username: "admin", DisplayName: "System Administrator",
				Email: "admin@staffdesk.local", Roles: []string{"hr_admin", "ADMIN"},
			}},
			"viewer": {password: "viewer123", user: model.User{
				ID: "u-02", Username: "viewer", DisplayName: "Read Only",
				Email: "viewer@staffdesk.local", Roles: []string{"viewer"},
			}},
			"trainer": {password: "trainer123", user: model.User{
				ID: "u-03", Username: "trainer", DisplayName: "Training Coordinator",
				Email: "trainer@staffdesk.local", Roles: []string{"trainer"},
			}},
		},
		key: key,
		ttl: ttl,
		now: time.Now,
	}
}

// Login implements Authenticator. Unknown users and wrong passwords answer
// like the backend does, with an HTTP 401 APIError.
func (a *MockAuth) Login(_ context.Context, req model.LoginRequest) (model.LoginResult, error) {
	acct, ok := a.accounts[req.Username]
	if !ok || acct.password != req.Password {
		return model.LoginResult{}, &model.APIError{
			Kind:    model.KindHTTP,
			Code:    http.StatusUnauthorized,
			Message: backend.HTTPErrorMessage(http.StatusUnauthorized),
		}
	}

	now := a.now()
	token, err := a.sign(acct.user, now, a.ttl)
	if err != nil {
		return model.LoginResult{}, err
	}
	refresh, err := a.sign(acct.user, now, 7*a.ttl)
	if err != nil {
		return model.LoginResult{}, err
	}
	return model.LoginResult{Token: token, RefreshToken: refresh, User: acct.user}, nil
}

// Logout implements Authenticator.
func (a *MockAuth) Logout(context.Context) error { return nil }

func (a *MockAuth) sign(user model.User, now time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("feature: mock token ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("feature: signing mock token: %w", err)
	}
	return signed, nil
}
