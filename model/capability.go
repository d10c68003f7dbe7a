package model

import "strings"

// Permission is a resource/action pair, e.g. {Resource: "employees", Action: "update"}.
type Permission struct {
	Resource string `json:"resource" yaml:"resource"`
	Action   string `json:"action"   yaml:"action"`
}

// String returns the "resource:action" form used as a PermissionSet key.
func (p Permission) String() string {
	return p.Resource + ":" + p.Action
}

// ParsePermission parses "resource:action". A bare resource yields an empty
// action.
func ParsePermission(s string) Permission {
	resource, action, _ := strings.Cut(s, ":")
	return Permission{Resource: resource, Action: action}
}

// PermissionSet is a set of granted permissions keyed by "resource:action".
// Keys may be wildcards: "*" grants everything, "employees:*" grants every
// action on employees.
type PermissionSet map[string]bool

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	ps := make(PermissionSet, len(perms))
	for _, p := range perms {
		ps[p.String()] = true
	}
	return ps
}

// Has returns true if the set contains the exact permission or a wildcard
// that matches it.
func (ps PermissionSet) Has(p Permission) bool {
	key := p.String()
	if ps[key] {
		return true
	}
	for pattern := range ps {
		if matchWildcard(pattern, key) {
			return true
		}
	}
	return false
}

// HasAll returns true if the set matches every given permission.
func (ps PermissionSet) HasAll(perms ...Permission) bool {
	for _, p := range perms {
		if !ps.Has(p) {
			return false
		}
	}
	return true
}

// HasAny returns true if the set matches at least one given permission.
func (ps PermissionSet) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if ps.Has(p) {
			return true
		}
	}
	return false
}

// Permissions returns the set's entries as Permission values.
func (ps PermissionSet) Permissions() []Permission {
	out := make([]Permission, 0, len(ps))
	for key, ok := range ps {
		if ok {
			out = append(out, ParsePermission(key))
		}
	}
	return out
}

// matchWildcard returns true if pattern (which may end in "*") matches key.
//
//	"*"           matches anything
//	"employees:*" matches "employees:update"
//	"employees"   matches nothing but itself
func matchWildcard(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.HasSuffix(pattern, ":*") {
		return false
	}
	return strings.HasPrefix(key, pattern[:len(pattern)-1])
}
