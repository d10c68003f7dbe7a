// Package query implements the paged query contract shared by every entity:
// search params are shaped into a backend page request, posted to
// <resource>/query, and the returned page envelope is adapted into a
// UiPageResult. A mock mode runs the same steps over an in-memory dataset.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/staffdesk/internal/backend"
	"github.com/pitabwire/staffdesk/internal/casing"
	"github.com/pitabwire/staffdesk/internal/observability"
	"github.com/pitabwire/staffdesk/model"
)

// Params is implemented by every entity's search params, usually by
// embedding model.SearchParams.
type Params interface {
	Search() model.SearchParams
}

// Hooks customise a Service for one entity. Every field is optional.
type Hooks[T any, P Params] struct {
	// SortColumn maps a UI sort column to a backend column. Defaults to
	// casing.CamelToSnake.
	SortColumn func(string) string
	// Filters returns the entity-specific filter fields of a query, keyed by
	// their camelCase names. Zero values are dropped.
	Filters func(P) map[string]any
	// Match is the mock-mode predicate. Defaults to DefaultMatch.
	Match func(T, P) bool
	// ID returns an item's identifier. Required for mock-mode mutations.
	ID func(T) string
	// WithID returns a copy of the item carrying the given identifier. Used
	// by mock-mode Create when the item has no ID yet.
	WithID func(T, string) T
}

// Recorder receives page query metrics. *observability.Metrics implements it.
type Recorder interface {
	RecordPageQuery(resource, mode, outcome string, duration time.Duration)
}

// Service runs paged queries and mutations for one backend resource.
type Service[T any, P Params] struct {
	resource string
	caller   backend.Caller
	hooks    Hooks[T, P]
	recorder Recorder

	bulkLimit   int
	maxPageSize int

	mock      *mockStore[T, P]
	mockDelay time.Duration
}

// New creates a Service for the given resource path, e.g. "employees".
func New[T any, P Params](resource string, caller backend.Caller, hooks Hooks[T, P]) *Service[T, P] {
	if hooks.SortColumn == nil {
		hooks.SortColumn = casing.CamelToSnake
	}
	if hooks.Match == nil {
		hooks.Match = DefaultMatch[T, P]
	}
	return &Service[T, P]{
		resource:  resource,
		caller:    caller,
		hooks:     hooks,
		bulkLimit:   8,
		maxPageSize: model.DefaultMaxPageSize,
	}
}

// WithMockData switches the service to mock mode over a copy of items. Every
// query and mutation waits for delay first, honoring cancellation.
func (s *Service[T, P]) WithMockData(items []T, delay time.Duration) *Service[T, P] {
	s.mock = newMockStore[T, P](items)
	s.mockDelay = delay
	return s
}

// WithRecorder attaches a metrics recorder.
func (s *Service[T, P]) WithRecorder(r Recorder) *Service[T, P] {
	s.recorder = r
	return s
}

// WithBulkLimit bounds the number of concurrent deletes in BulkDelete.
func (s *Service[T, P]) WithBulkLimit(n int) *Service[T, P] {
	if n > 0 {
		s.bulkLimit = n
	}
	return s
}

// WithMaxPageSize caps the page size a query may request.
func (s *Service[T, P]) WithMaxPageSize(n int) *Service[T, P] {
	if n > 0 {
		s.maxPageSize = n
	}
	return s
}

// Resource returns the backend resource path.
func (s *Service[T, P]) Resource() string {
	return s.resource
}

// Mocked reports whether the service runs over in-memory data.
func (s *Service[T, P]) Mocked() bool {
	return s.mock != nil
}

// BuildRequest shapes params into a backend page request.
func (s *Service[T, P]) BuildRequest(params P) model.PageRequest {
	sp := params.Search().Clamp(s.maxPageSize)
	req := model.PageRequest{Filters: make(map[string]any)}

	if sp.Paged() {
		req.Pageable = true
		req.FirstIndexInPage = (sp.Page-1)*sp.PageSize + 1
		req.LastIndexInPage = sp.Page * sp.PageSize
	}
	if sp.SortColumn != "" {
		req.SortColumn = s.hooks.SortColumn(sp.SortColumn)
		req.SortDirection = sp.SortDirection.Normalize()
	}

	if sp.Keyword != "" {
		req.Filters["keyword"] = sp.Keyword
	}
	if sp.IsActive != nil {
		req.Filters["isActive"] = *sp.IsActive
	}
	if s.hooks.Filters != nil {
		for k, v := range s.hooks.Filters(params) {
			if !isZeroFilter(v) {
				req.Filters[k] = v
			}
		}
	}
	return req
}

// GetPagedData runs a paged query. The derived paging fields of the result
// are always recomputed from totalRecords and the requested page size.
func (s *Service[T, P]) GetPagedData(ctx context.Context, params P) (res model.UiPageResult[T], err error) {
	mode := "backend"
	if s.mock != nil {
		mode = "mock"
	}
	ctx, span := observability.StartSpan(ctx, "query.page",
		observability.AttrResource.String(s.resource),
		observability.AttrQueryMode.String(mode),
	)
	start := time.Now()
	defer func() {
		s.record(mode, err, start)
		observability.EndSpanWithError(span, err)
	}()

	req := s.BuildRequest(params)
	if s.mock != nil {
		if err := sleepCtx(ctx, s.mockDelay); err != nil {
			return model.UiPageResult[T]{}, err
		}
		env := s.mock.page(params, req, s.hooks.Match)
		return adapt(env, params.Search().Clamp(s.maxPageSize)), nil
	}

	var env model.PageEnvelope[T]
	if err := s.caller.Call(ctx, s.resource+"/query", req, &env); err != nil {
		return model.UiPageResult[T]{}, err
	}
	return adapt(env, params.Search().Clamp(s.maxPageSize)), nil
}

// adapt derives the UI paging fields. An unpaged query is reported as a
// single page holding every item.
func adapt[T any](env model.PageEnvelope[T], sp model.SearchParams) model.UiPageResult[T] {
	if sp.Paged() {
		return model.NewUiPageResult(env, sp.Page, sp.PageSize)
	}
	return model.NewUiPageResult(env, 1, len(env.List))
}

type idBody struct {
	ID string `json:"id"`
}

// GetByID fetches one item through <resource>/detail.
func (s *Service[T, P]) GetByID(ctx context.Context, id string) (T, error) {
	if s.mock != nil {
		if err := sleepCtx(ctx, s.mockDelay); err != nil {
			var zero T
			return zero, err
		}
		return s.mock.get(id, s.hooks.ID)
	}
	var out T
	err := s.caller.Call(ctx, s.resource+"/detail", idBody{ID: id}, &out)
	return out, err
}

// Create posts a new item to <resource>/create and returns the stored item.
func (s *Service[T, P]) Create(ctx context.Context, item T) (T, error) {
	if s.mock != nil {
		if err := sleepCtx(ctx, s.mockDelay); err != nil {
			var zero T
			return zero, err
		}
		return s.mock.create(item, s.hooks.ID, s.hooks.WithID)
	}
	return s.write(ctx, "create", item)
}

// Update posts an item to <resource>/update and returns the stored item.
func (s *Service[T, P]) Update(ctx context.Context, item T) (T, error) {
	if s.mock != nil {
		if err := sleepCtx(ctx, s.mockDelay); err != nil {
			var zero T
			return zero, err
		}
		return s.mock.update(item, s.hooks.ID)
	}
	return s.write(ctx, "update", item)
}

// write posts item and falls back to echoing it when the backend returns
// no data.
func (s *Service[T, P]) write(ctx context.Context, op string, item T) (T, error) {
	var out T
	err := s.caller.Call(ctx, s.resource+"/"+op, item, &out)
	if errors.Is(err, backend.ErrNoData) {
		return item, nil
	}
	return out, err
}

// Delete removes one item through <resource>/delete.
func (s *Service[T, P]) Delete(ctx context.Context, id string) error {
	if s.mock != nil {
		if err := sleepCtx(ctx, s.mockDelay); err != nil {
			return err
		}
		return s.mock.delete(id, s.hooks.ID)
	}
	return s.caller.Call(ctx, s.resource+"/delete", idBody{ID: id}, nil)
}

// BulkDelete deletes every id concurrently. It succeeds only if every delete
// succeeds; the first failure cancels the deletes still in flight and is
// returned.
func (s *Service[T, P]) BulkDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkLimit)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.Delete(gctx, id); err != nil {
				return fmt.Errorf("query: delete %s %s: %w", s.resource, id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Service[T, P]) record(mode string, err error, start time.Time) {
	if s.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.recorder.RecordPageQuery(s.resource, mode, outcome, time.Since(start))
}

func isZeroFilter(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case int:
		return t == 0
	case *bool:
		return t == nil
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
