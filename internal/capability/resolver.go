// Package capability expands user roles into permission sets using a static
// role policy, with an in-memory cache in front.
package capability

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/staffdesk/model"
)

// Expander turns a role list into a permission set.
type Expander interface {
	Expand(roles []string) (model.PermissionSet, error)
}

type cacheEntry struct {
	perms   model.PermissionSet
	expires time.Time
}

// Resolver caches Expander results keyed by the sorted role list.
type Resolver struct {
	expander   Expander
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewResolver creates a Resolver. A maxEntries of zero means unbounded.
func NewResolver(expander Expander, ttl time.Duration, maxEntries int) *Resolver {
	return &Resolver{
		expander:   expander,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

func cacheKey(roles []string) string {
	sorted := slices.Clone(roles)
	slices.Sort(sorted)
	return strings.Join(slices.Compact(sorted), ",")
}

// Resolve returns the permissions for roles, merged with any explicit
// permissions the backend already granted.
func (r *Resolver) Resolve(roles []string, explicit ...model.Permission) (model.PermissionSet, error) {
	perms, err := r.expand(roles)
	if err != nil {
		return nil, err
	}
	out := make(model.PermissionSet, len(perms)+len(explicit))
	for k, v := range perms {
		out[k] = v
	}
	for _, p := range explicit {
		out[p.String()] = true
	}
	return out, nil
}

func (r *Resolver) expand(roles []string) (model.PermissionSet, error) {
	key := cacheKey(roles)
	now := r.now()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && now.Before(entry.expires) {
		r.mu.RUnlock()
		return entry.perms, nil
	}
	r.mu.RUnlock()

	perms, err := r.expander.Expand(roles)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.maxEntries > 0 && len(r.cache) >= r.maxEntries {
		r.evictLocked(now)
	}
	r.cache[key] = cacheEntry{perms: perms, expires: now.Add(r.ttl)}
	r.mu.Unlock()

	return perms, nil
}

// evictLocked drops expired entries, or everything if none had expired.
func (r *Resolver) evictLocked(now time.Time) {
	before := len(r.cache)
	for k, e := range r.cache {
		if !now.Before(e.expires) {
			delete(r.cache, k)
		}
	}
	if len(r.cache) == before {
		clear(r.cache)
	}
}

// Invalidate clears the whole cache, e.g. after the policy file is reloaded.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	clear(r.cache)
	r.mu.Unlock()
}

// Len returns the number of cached role combinations.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
