package capability

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/staffdesk/model"
)

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// StaticPolicy expands roles into permissions from a YAML file of the form
//
//	roles:
//	  hr_admin: ["employees:*", "departments:*"]
//	  viewer:   ["employees:read"]
type StaticPolicy struct {
	path   string
	mu     sync.RWMutex
	policy policyFile
}

// NewStaticPolicy loads the policy at path.
func NewStaticPolicy(path string) (*StaticPolicy, error) {
	p := &StaticPolicy{path: path}
	if err := p.Sync(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewStaticPolicyFromMap builds a policy without a backing file. Sync is a
// no-op on it.
func NewStaticPolicyFromMap(roles map[string][]string) *StaticPolicy {
	return &StaticPolicy{policy: policyFile{Roles: roles}}
}

// Expand returns the union of the permissions granted to roles. Unknown roles
// contribute nothing.
func (p *StaticPolicy) Expand(roles []string) (model.PermissionSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := make(model.PermissionSet)
	for _, role := range roles {
		for _, perm := range p.policy.Roles[role] {
			set[perm] = true
		}
	}
	return set, nil
}

// Roles returns the number of roles in the loaded policy.
func (p *StaticPolicy) Roles() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.policy.Roles)
}

// Sync reloads the policy file from disk.
func (p *StaticPolicy) Sync() error {
	if p.path == "" {
		return nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("capability: reading policy file %s: %w", p.path, err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("capability: parsing policy file %s: %w", p.path, err)
	}
	for role, perms := range pf.Roles {
		for _, perm := range perms {
			if perm != "*" && model.ParsePermission(perm).Action == "" {
				return fmt.Errorf("capability: role %q: permission %q is not resource:action", role, perm)
			}
		}
	}

	p.mu.Lock()
	p.policy = pf
	p.mu.Unlock()

	return nil
}
