package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/staffdesk/internal/capability"
	"github.com/pitabwire/staffdesk/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

type outcomes []string

func (o *outcomes) RecordSessionRestore(outcome string) { *o = append(*o, outcome) }

func newTestManager(store Storage) (*Manager, *outcomes) {
	rec := &outcomes{}
	policy := capability.NewStaticPolicyFromMap(map[string][]string{
		"hr_admin": {"employees:*"},
		"viewer":   {"departments:read"},
	})
	m := NewManager(store, capability.NewResolver(policy, time.Minute, 0), WithRecorder(rec))
	m.now = func() time.Time { return testNow }
	return m, rec
}

func TestManager_loginThenRestore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(time.Hour)
	m, rec := newTestManager(store)
	token := signedToken(t, testNow.Add(time.Hour))

	s, err := m.Login(ctx, "s-1", model.LoginResult{Token: token, RefreshToken: "ref", User: hrUser()})
	require.NoError(t, err)
	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.HasPermission(model.Permission{Resource: "employees", Action: "delete"}))

	values, _ := store.Load(ctx, "s-1")
	assert.Len(t, values, 4)
	assert.Equal(t, "grace", values[KeyCurrentUsername])

	restored := m.Restore(ctx, "s-1")
	assert.True(t, restored.IsAuthenticated())
	assert.Equal(t, token, restored.Token())
	assert.Equal(t, "ref", restored.RefreshToken())
	assert.True(t, restored.HasPermission(model.Permission{Resource: "departments", Action: "read"}))
	assert.Equal(t, outcomes{RestoreOK}, *rec)
}

func TestManager_restoreCorruptUserPurges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(0)
	m, rec := newTestManager(store)
	require.NoError(t, store.Save(ctx, "s-1", map[string]string{
		KeyAuthToken:       "opaque",
		KeyRefreshToken:    "ref",
		KeyCurrentUser:     "{not json",
		KeyCurrentUsername: "grace",
	}))

	s := m.Restore(ctx, "s-1")

	assert.False(t, s.IsAuthenticated())
	assert.NoError(t, s.Err(), "corrupt state is not surfaced as an error")
	values, _ := store.Load(ctx, "s-1")
	assert.Empty(t, values, "all four keys must be purged")
	assert.Equal(t, outcomes{RestoreCorrupt}, *rec)
}

func TestManager_restoreExpiredTokenPurges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(0)
	m, rec := newTestManager(store)
	_, err := m.Login(ctx, "s-1", model.LoginResult{Token: signedToken(t, testNow.Add(time.Minute)), User: hrUser()})
	require.NoError(t, err)

	m.now = func() time.Time { return testNow.Add(time.Hour) }
	s := m.Restore(ctx, "s-1")

	assert.False(t, s.IsAuthenticated())
	assert.Zero(t, store.Len())
	assert.Equal(t, outcomes{RestoreExpired}, *rec)
}

func TestManager_restorePartialStatePurges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(0)
	m, rec := newTestManager(store)
	require.NoError(t, store.Save(ctx, "s-1", map[string]string{KeyCurrentUsername: "grace", KeyAuthToken: "t"}))

	s := m.Restore(ctx, "s-1")

	assert.False(t, s.IsAuthenticated())
	assert.Zero(t, store.Len())
	assert.Equal(t, outcomes{RestoreCorrupt}, *rec)
}

func TestManager_restoreAnonymous(t *testing.T) {
	m, rec := newTestManager(NewMemoryStorage(0))

	assert.False(t, m.Restore(context.Background(), "").IsAuthenticated())
	assert.False(t, m.Restore(context.Background(), "unknown").IsAuthenticated())
	assert.Equal(t, outcomes{RestoreAnonymous, RestoreAnonymous}, *rec)
}

func TestManager_opaqueTokenIsAccepted(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(NewMemoryStorage(0))

	_, err := m.Login(ctx, "s-1", model.LoginResult{Token: "opaque-token", User: hrUser()})
	require.NoError(t, err)
	assert.True(t, m.Restore(ctx, "s-1").IsAuthenticated())
}

type failingStorage struct{ MemoryStorage }

func (*failingStorage) Load(context.Context, string) (map[string]string, error) {
	return nil, errors.New("store down")
}

func TestManager_restoreStorageError(t *testing.T) {
	m, rec := newTestManager(&failingStorage{})

	s := m.Restore(context.Background(), "s-1")

	assert.False(t, s.IsAuthenticated())
	assert.EqualError(t, s.Err(), "store down")
	assert.Equal(t, outcomes{RestoreError}, *rec)
}

func TestManager_loginValidation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(NewMemoryStorage(0))

	_, err := m.Login(ctx, "", model.LoginResult{Token: "t", User: hrUser()})
	assert.Error(t, err)

	_, err = m.Login(ctx, "s-1", model.LoginResult{User: hrUser()})
	assert.Error(t, err)

	_, err = m.Login(ctx, "s-1", model.LoginResult{Token: "t"})
	assert.Error(t, err)

	_, err = m.Login(ctx, "s-1", model.LoginResult{Token: signedToken(t, testNow.Add(-time.Minute)), User: hrUser()})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestManager_loginWithoutRefreshTokenDropsOldOne(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(0)
	m, _ := newTestManager(store)
	require.NoError(t, store.Save(ctx, "s-1", map[string]string{KeyRefreshToken: "stale"}))

	_, err := m.Login(ctx, "s-1", model.LoginResult{Token: "t", User: hrUser()})
	require.NoError(t, err)

	values, _ := store.Load(ctx, "s-1")
	assert.NotContains(t, values, KeyRefreshToken)
}

func TestManager_logout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(0)
	m, _ := newTestManager(store)
	_, err := m.Login(ctx, "s-1", model.LoginResult{Token: "t", RefreshToken: "r", User: hrUser()})
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, "s-1"))
	assert.Zero(t, store.Len())
	assert.False(t, m.Restore(ctx, "s-1").IsAuthenticated())
}
