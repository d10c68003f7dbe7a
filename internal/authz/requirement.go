// Package authz decides whether a session may enter a UI route or call an
// API operation, based on the roles and permissions the route requires.
package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pitabwire/staffdesk/model"
)

// Requirement is what a route demands of the principal. With RequireAll
// every listed role (and every listed permission) must be held; otherwise
// any one of each list suffices. An empty Requirement only needs an
// authenticated principal.
type Requirement struct {
	Roles       []string           `json:"roles,omitempty"`
	Permissions []model.Permission `json:"permissions,omitempty"`
	RequireAll  bool               `json:"requireAll,omitempty"`
}

// Validate checks that every role is named and every permission has both a
// resource and an action.
func (r Requirement) Validate() error {
	var errs []string
	for i, role := range r.Roles {
		if strings.TrimSpace(role) == "" {
			errs = append(errs, fmt.Sprintf("roles[%d] is empty", i))
		}
	}
	for i, p := range r.Permissions {
		if p.Resource == "" || p.Action == "" {
			errs = append(errs, fmt.Sprintf("permissions[%d] %q needs resource and action", i, p.String()))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Open reports whether the requirement demands nothing beyond authentication.
func (r Requirement) Open() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// NeedPermission is a shorthand for a single-permission requirement.
func NeedPermission(resource, action string) Requirement {
	return Requirement{Permissions: []model.Permission{{Resource: resource, Action: action}}}
}
