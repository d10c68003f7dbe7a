package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/staffdesk/model"
)

// Restore outcomes, also used as metric labels.
const (
	RestoreAnonymous = "anonymous"
	RestoreOK        = "restored"
	RestoreCorrupt   = "corrupt"
	RestoreExpired   = "expired"
	RestoreError     = "error"
)

// ErrTokenExpired is returned by Login when the backend hands out a token
// that is already past its exp claim.
var ErrTokenExpired = errors.New("session: token expired")

// PermissionResolver expands roles plus explicit grants into a permission set.
type PermissionResolver interface {
	Resolve(roles []string, explicit ...model.Permission) (model.PermissionSet, error)
}

// Recorder receives restore outcomes.
type Recorder interface {
	RecordSessionRestore(outcome string)
}

// Manager restores, establishes and tears down sessions on top of a Storage.
type Manager struct {
	store    Storage
	resolver PermissionResolver
	recorder Recorder
	now      func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRecorder sets the restore outcome recorder.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a Manager. A nil resolver keeps only the permissions the
// backend granted explicitly.
func NewManager(store Storage, resolver PermissionResolver, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, resolver: resolver, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Storage returns the underlying storage.
func (m *Manager) Storage() Storage { return m.store }

// Restore rebuilds the session sid from storage. Corrupt or expired state is
// logged and purged, and an unauthenticated session is returned; those
// failures are never returned to the caller. A storage failure is recorded on
// the session via SetError.
func (m *Manager) Restore(ctx context.Context, sid string) *Session {
	s := New(sid)
	if sid == "" {
		m.record(RestoreAnonymous)
		return s
	}

	s.SetLoading(true)
	defer s.SetLoading(false)

	values, err := m.store.Load(ctx, sid)
	if err != nil {
		slog.Error("session: load failed", "session_id", sid, "error", err)
		s.SetError(err)
		m.record(RestoreError)
		return s
	}

	token := values[KeyAuthToken]
	rawUser := values[KeyCurrentUser]
	if token == "" && rawUser == "" {
		m.record(RestoreAnonymous)
		return s
	}

	var user model.User
	if token == "" || rawUser == "" {
		m.discard(ctx, sid, RestoreCorrupt, errors.New("partial session state"))
		return s
	}
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		m.discard(ctx, sid, RestoreCorrupt, fmt.Errorf("decode %s: %w", KeyCurrentUser, err))
		return s
	}
	if tokenExpired(token, m.now()) {
		m.discard(ctx, sid, RestoreExpired, ErrTokenExpired)
		return s
	}

	perms, err := m.resolve(user)
	if err != nil {
		slog.Error("session: permission resolution failed", "session_id", sid, "error", err)
		s.SetError(err)
		m.record(RestoreError)
		return s
	}

	s.SetUser(user, token, values[KeyRefreshToken], perms)
	m.record(RestoreOK)
	return s
}

// Login persists a successful backend login under sid and returns the
// authenticated session.
func (m *Manager) Login(ctx context.Context, sid string, res model.LoginResult) (*Session, error) {
	if sid == "" {
		return nil, errors.New("session: login requires a session id")
	}
	if res.Token == "" {
		return nil, errors.New("session: login result carries no token")
	}
	if res.User.Username == "" {
		return nil, errors.New("session: login result carries no username")
	}
	if tokenExpired(res.Token, m.now()) {
		return nil, ErrTokenExpired
	}

	perms, err := m.resolve(res.User)
	if err != nil {
		return nil, fmt.Errorf("session: resolve permissions: %w", err)
	}

	rawUser, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("session: encode user: %w", err)
	}
	values := map[string]string{
		KeyAuthToken:       res.Token,
		KeyCurrentUser:     string(rawUser),
		KeyCurrentUsername: res.User.Username,
	}
	if res.RefreshToken != "" {
		values[KeyRefreshToken] = res.RefreshToken
	}
	if err := m.store.Save(ctx, sid, values); err != nil {
		return nil, err
	}
	if res.RefreshToken == "" {
		if err := m.store.Purge(ctx, sid, KeyRefreshToken); err != nil {
			return nil, err
		}
	}

	s := New(sid)
	s.SetUser(res.User, res.Token, res.RefreshToken, perms)
	return s, nil
}

// Logout removes every persisted key of sid.
func (m *Manager) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return m.store.Purge(ctx, sid, AllKeys...)
}

func (m *Manager) resolve(user model.User) (model.PermissionSet, error) {
	if m.resolver == nil {
		return user.PermissionSet(), nil
	}
	return m.resolver.Resolve(user.Roles, user.Permissions...)
}

func (m *Manager) discard(ctx context.Context, sid, outcome string, cause error) {
	slog.Warn("session: discarding stored state",
		"session_id", sid,
		"outcome", outcome,
		"error", cause,
	)
	if err := m.store.Purge(ctx, sid, AllKeys...); err != nil {
		slog.Error("session: purge failed", "session_id", sid, "error", err)
	}
	m.record(outcome)
}

func (m *Manager) record(outcome string) {
	if m.recorder != nil {
		m.recorder.RecordSessionRestore(outcome)
	}
}

// tokenExpired reports whether token is a JWT whose exp claim is at or before
// now. Tokens that are not JWTs, or carry no exp, never expire here; the
// backend remains the authority and answers 401 when it disagrees.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
