package query

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pitabwire/staffdesk/internal/casing"
	"github.com/pitabwire/staffdesk/model"
)

// DefaultMatch is the mock-mode predicate used when an entity supplies none.
// It matches the keyword as a case-insensitive substring of any string field
// and, when set, the isActive flag.
func DefaultMatch[T any, P Params](item T, params P) bool {
	sp := params.Search()
	if sp.Keyword == "" && sp.IsActive == nil {
		return true
	}
	fields := Fields(item)
	if sp.IsActive != nil {
		active, _ := fields["isActive"].(bool)
		if active != *sp.IsActive {
			return false
		}
	}
	if sp.Keyword == "" {
		return true
	}
	kw := strings.ToLower(sp.Keyword)
	for _, v := range fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), kw) {
			return true
		}
	}
	return false
}

// Fields returns the JSON fields of item keyed by their camelCase names.
func Fields(item any) map[string]any {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// mockStore is the in-memory dataset behind mock mode.
type mockStore[T any, P Params] struct {
	mu    sync.RWMutex
	items []T
}

func newMockStore[T any, P Params](items []T) *mockStore[T, P] {
	return &mockStore[T, P]{items: slices.Clone(items)}
}

// page filters, sorts and slices the dataset the way the backend would.
// Sorting compares the JSON field behind the backend sort column, so UI
// aliases resolve through the same SortColumn hook as real queries.
func (m *mockStore[T, P]) page(params P, req model.PageRequest, match func(T, P) bool) model.PageEnvelope[T] {
	m.mu.RLock()
	filtered := make([]T, 0, len(m.items))
	for _, item := range m.items {
		if match(item, params) {
			filtered = append(filtered, item)
		}
	}
	m.mu.RUnlock()

	if req.SortColumn != "" {
		field := casing.SnakeToCamel(req.SortColumn)
		dir := req.SortDirection.Normalize()
		keyed := make([]sortable[T], len(filtered))
		for i, item := range filtered {
			keyed[i] = sortable[T]{item: item, key: Fields(item)[field]}
		}
		slices.SortStableFunc(keyed, func(a, b sortable[T]) int {
			c := compareValues(a.key, b.key)
			if dir == model.SortDesc {
				return -c
			}
			return c
		})
		for i := range keyed {
			filtered[i] = keyed[i].item
		}
	}

	env := model.PageEnvelope[T]{
		TotalRecords:     len(filtered),
		Pageable:         req.Pageable,
		FirstIndexInPage: req.FirstIndexInPage,
		LastIndexInPage:  req.LastIndexInPage,
		SortColumn:       req.SortColumn,
		SortDirection:    req.SortDirection,
	}
	if !req.Pageable {
		env.List = filtered
		return env
	}

	start := min(max(req.FirstIndexInPage-1, 0), len(filtered))
	end := min(max(req.LastIndexInPage, start), len(filtered))
	env.List = filtered[start:end]
	return env
}

type sortable[T any] struct {
	item T
	key  any
}

// compareValues orders decoded JSON values. nil sorts first; values of
// different kinds fall back to their string form.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func (m *mockStore[T, P]) get(id string, idOf func(T) string) (T, error) {
	var zero T
	if idOf == nil {
		return zero, fmt.Errorf("query: mock lookup needs an ID hook")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if idOf(item) == id {
			return item, nil
		}
	}
	return zero, model.NewNotFoundError(fmt.Sprintf("record %s not found", id))
}

func (m *mockStore[T, P]) create(item T, idOf func(T) string, withID func(T, string) T) (T, error) {
	if idOf != nil && withID != nil && idOf(item) == "" {
		item = withID(item, uuid.NewString())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return item, nil
}

func (m *mockStore[T, P]) update(item T, idOf func(T) string) (T, error) {
	var zero T
	if idOf == nil {
		return zero, fmt.Errorf("query: mock update needs an ID hook")
	}
	id := idOf(item)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if idOf(m.items[i]) == id {
			m.items[i] = item
			return item, nil
		}
	}
	return zero, model.NewNotFoundError(fmt.Sprintf("record %s not found", id))
}

func (m *mockStore[T, P]) delete(id string, idOf func(T) string) error {
	if idOf == nil {
		return fmt.Errorf("query: mock delete needs an ID hook")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if idOf(m.items[i]) == id {
			m.items = slices.Delete(m.items, i, i+1)
			return nil
		}
	}
	return model.NewNotFoundError(fmt.Sprintf("record %s not found", id))
}
