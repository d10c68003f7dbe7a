package intercept

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// AllowListFromSpec loads the backend's OpenAPI document and returns one
// path fragment ("/employees") per distinct first path segment.
func AllowListFromSpec(path string) ([]string, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("intercept: loading %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("intercept: validating %s: %w", path, err)
	}
	if doc.Paths == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	for p := range doc.Paths.Map() {
		seg, _, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		seen["/"+seg] = true
	}

	out := make([]string, 0, len(seen))
	for frag := range seen {
		out = append(out, frag)
	}
	sort.Strings(out)
	return out, nil
}

// MergeAllowLists returns the sorted union of the given lists.
func MergeAllowLists(lists ...[]string) []string {
	seen := make(map[string]bool)
	for _, l := range lists {
		for _, f := range l {
			if f != "" {
				seen[f] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
