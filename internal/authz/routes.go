package authz

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/staffdesk/model"
)

// RouteSpec is one entry of a route table file.
type RouteSpec struct {
	Path        string   `yaml:"path"`
	Roles       []string `yaml:"roles"`
	Permissions []string `yaml:"permissions"`
	RequireAll  bool     `yaml:"require_all"`
}

type routeFile struct {
	Routes []RouteSpec `yaml:"routes"`
}

type route struct {
	prefix string
	req    Requirement
}

// RouteTable maps UI path prefixes to requirements. Lookups pick the longest
// registered prefix that ends on a path segment boundary.
type RouteTable struct {
	mu     sync.RWMutex
	routes []route
}

// NewRouteTable returns an empty table.
func NewRouteTable() *RouteTable {
	return &RouteTable{}
}

// LoadRouteTable reads a YAML route file:
//
//	routes:
//	  - path: /employees
//	    permissions: ["employees:read"]
//	  - path: /admin
//	    roles: [hr_admin, root]
func LoadRouteTable(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authz: reading route file %s: %w", path, err)
	}
	var rf routeFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("authz: parsing route file %s: %w", path, err)
	}

	t := NewRouteTable()
	for _, spec := range rf.Routes {
		req := Requirement{Roles: spec.Roles, RequireAll: spec.RequireAll}
		for _, p := range spec.Permissions {
			req.Permissions = append(req.Permissions, model.ParsePermission(p))
		}
		if err := t.Register(spec.Path, req); err != nil {
			return nil, fmt.Errorf("authz: %s: %w", path, err)
		}
	}
	return t, nil
}

// Register adds or replaces the requirement for prefix.
func (t *RouteTable) Register(prefix string, req Requirement) error {
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("route %q must start with /", prefix)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("route %q: %w", prefix, err)
	}
	prefix = normalizePath(prefix)

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.routes {
		if t.routes[i].prefix == prefix {
			t.routes[i].req = req
			return nil
		}
	}
	t.routes = append(t.routes, route{prefix: prefix, req: req})
	sort.Slice(t.routes, func(i, j int) bool {
		return len(t.routes[i].prefix) > len(t.routes[j].prefix)
	})
	return nil
}

// Match returns the requirement of the longest prefix covering url. The
// query string and fragment are ignored.
func (t *RouteTable) Match(url string) (Requirement, bool) {
	p := normalizePath(url)

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.routes {
		if covers(r.prefix, p) {
			return r.req, true
		}
	}
	return Requirement{}, false
}

// Len returns the number of registered routes.
func (t *RouteTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

func covers(prefix, p string) bool {
	if prefix == "/" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix) && p[len(prefix)] == '/'
}

func normalizePath(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if len(u) > 1 {
		u = strings.TrimRight(u, "/")
	}
	if u == "" {
		return "/"
	}
	return u
}
