package session

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// Persisted keys of one session.
const (
	KeyAuthToken       = "auth-token"
	KeyRefreshToken    = "refresh-token"
	KeyCurrentUser     = "current-user"
	KeyCurrentUsername = "current-username"
)

// AllKeys lists every persisted key, in the order they are written.
var AllKeys = []string{KeyAuthToken, KeyRefreshToken, KeyCurrentUser, KeyCurrentUsername}

// coversAllKeys reports whether keys includes every entry of AllKeys.
func coversAllKeys(keys []string) bool {
	for _, k := range AllKeys {
		if !slices.Contains(keys, k) {
			return false
		}
	}
	return true
}

// Storage persists string values per session id. A missing or expired
// session loads as an empty map, never as an error.
type Storage interface {
	// Load returns every stored key of the session.
	Load(ctx context.Context, sid string) (map[string]string, error)
	// Save writes values and refreshes the session TTL.
	Save(ctx context.Context, sid string, values map[string]string) error
	// Purge removes the given keys.
	Purge(ctx context.Context, sid string, keys ...string) error
	// HealthCheck reports whether the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// --- MemoryStorage ---

type memEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStorage is an in-memory Storage with TTL support. Suitable for
// testing and single-instance deployments.
type MemoryStorage struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*memEntry
}

// NewMemoryStorage creates an in-memory storage whose sessions expire ttl
// after their last Save. A zero ttl never expires.
func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	return &MemoryStorage{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*memEntry),
	}
}

// Load returns a copy of the stored values.
func (s *MemoryStorage) Load(_ context.Context, sid string) (map[string]string, error) {
	s.mu.RLock()
	entry, ok := s.entries[sid]
	s.mu.RUnlock()

	if !ok {
		return map[string]string{}, nil
	}
	if s.expired(entry) {
		s.mu.Lock()
		delete(s.entries, sid)
		s.mu.Unlock()
		return map[string]string{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(entry.values), nil
}

// Save merges values into the session.
func (s *MemoryStorage) Save(_ context.Context, sid string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sid]
	if !ok || s.expired(entry) {
		entry = &memEntry{values: make(map[string]string, len(values))}
		s.entries[sid] = entry
	}
	maps.Copy(entry.values, values)
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	return nil
}

// Purge removes keys; the session is dropped once it has none left.
func (s *MemoryStorage) Purge(_ context.Context, sid string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sid]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(entry.values, k)
	}
	if len(entry.values) == 0 {
		delete(s.entries, sid)
	}
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryStorage) HealthCheck(context.Context) error { return nil }

// Len returns the number of sessions (including expired ones). For testing.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStorage) expired(e *memEntry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}
