// Package session holds the authenticated principal of one browser session
// and persists it through a pluggable Storage driver.
package session

import (
	"slices"
	"sync"

	"github.com/pitabwire/staffdesk/model"
)

// Snapshot is a point-in-time copy of a Session, safe to serialize.
type Snapshot struct {
	SessionID     string      `json:"-"`
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
	Permissions   []string    `json:"permissions,omitempty"`
	Loading       bool        `json:"loading"`
	Error         string      `json:"error,omitempty"`
}

type authState struct {
	token        string
	refreshToken string
	user         *model.User
	perms        model.PermissionSet
}

// Session is the state of one browser session. It is created per request by
// Manager.Restore and passed explicitly; there is no package-level instance.
// Every mutator replaces its slice of state wholesale.
type Session struct {
	id string

	mu      sync.RWMutex
	auth    authState
	loading bool
	err     error
}

// New returns an unauthenticated session with the given id.
func New(id string) *Session {
	return &Session{id: id}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// IsAuthenticated reports whether a user and token are present.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.user != nil && s.auth.token != ""
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.auth.user)
}

func copyUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = slices.Clone(u.Roles)
	c.Permissions = slices.Clone(u.Permissions)
	return &c
}

// Token returns the backend bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.token
}

// RefreshToken returns the backend refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.refreshToken
}

// HasRole reports whether the user holds role.
func (s *Session) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.user != nil && slices.Contains(s.auth.user.Roles, role)
}

// HasAnyRole reports whether the user holds at least one of roles.
func (s *Session) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the user holds every one of roles.
func (s *Session) HasAllRoles(roles ...string) bool {
	if !s.IsAuthenticated() {
		return false
	}
	for _, r := range roles {
		if !s.HasRole(r) {
			return false
		}
	}
	return true
}

// HasPermission reports whether the resolved permission set grants p.
func (s *Session) HasPermission(p model.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.perms.Has(p)
}

// HasAnyPermission reports whether at least one of perms is granted.
func (s *Session) HasAnyPermission(perms ...model.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.perms.HasAny(perms...)
}

// HasAllPermissions reports whether every one of perms is granted.
func (s *Session) HasAllPermissions(perms ...model.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth.user == nil {
		return false
	}
	return s.auth.perms.HasAll(perms...)
}

// SetUser replaces the authenticated state. perms is the resolved permission
// set (role expansion plus explicit grants).
func (s *Session) SetUser(user model.User, token, refreshToken string, perms model.PermissionSet) {
	if perms == nil {
		perms = model.PermissionSet{}
	}
	s.mu.Lock()
	s.auth = authState{token: token, refreshToken: refreshToken, user: &user, perms: perms}
	s.err = nil
	s.mu.Unlock()
}

// ClearUser drops the authenticated state.
func (s *Session) ClearUser() {
	s.mu.Lock()
	s.auth = authState{}
	s.mu.Unlock()
}

// SetLoading marks an in-flight login or restore.
func (s *Session) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// SetError records the last session error. nil clears it.
func (s *Session) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Err returns the last recorded error.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		SessionID:     s.id,
		Authenticated: s.auth.user != nil && s.auth.token != "",
		User:          copyUser(s.auth.user),
		Loading:       s.loading,
	}
	for key, ok := range s.auth.perms {
		if ok {
			snap.Permissions = append(snap.Permissions, key)
		}
	}
	slices.Sort(snap.Permissions)
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
