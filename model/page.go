package model

import (
	"encoding/json"
	"math"
	"strings"
)

// SuccessCode is the envelope code the backend uses for success.
const SuccessCode = 1000

// Envelope is the {code, message, data} wrapper around every backend response.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *T     `json:"data,omitempty"`
}

// SortDirection is "asc" or "desc".
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Normalize returns SortDesc for any casing of "desc" and SortAsc otherwise.
func (d SortDirection) Normalize() SortDirection {
	if strings.EqualFold(string(d), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// SearchParams holds the query fields shared by every entity. Entity search
// params embed it and add their own filters. Values are rebuilt with Merge,
// never mutated in place.
type SearchParams struct {
	Keyword       string        `json:"keyword,omitempty"`
	IsActive      *bool         `json:"isActive,omitempty"`
	SortColumn    string        `json:"sortColumn,omitempty"`
	SortDirection SortDirection `json:"sortDirection,omitempty"`
	Page          int           `json:"page,omitempty"`
	PageSize      int           `json:"pageSize,omitempty"`
}

// Search returns the shared fields. Entity params get it by embedding.
func (p SearchParams) Search() SearchParams {
	return p
}

// Paged reports whether page-based parameters were supplied.
func (p SearchParams) Paged() bool {
	return p.Page >= 1 && p.PageSize >= 1
}

// DefaultMaxPageSize caps PageSize when no other limit is configured.
const DefaultMaxPageSize = 1000

// Clamp returns p with PageSize capped at maxPageSize and Page capped so that
// Page*PageSize still fits in an int. Unpaged params are returned unchanged.
func (p SearchParams) Clamp(maxPageSize int) SearchParams {
	if !p.Paged() {
		return p
	}
	if maxPageSize < 1 {
		maxPageSize = DefaultMaxPageSize
	}
	p.PageSize = min(p.PageSize, maxPageSize)
	p.Page = min(p.Page, math.MaxInt/p.PageSize)
	return p
}

// Merge returns a copy of p with every non-zero field of o applied on top.
func (p SearchParams) Merge(o SearchParams) SearchParams {
	out := p
	if o.Keyword != "" {
		out.Keyword = o.Keyword
	}
	if o.IsActive != nil {
		v := *o.IsActive
		out.IsActive = &v
	}
	if o.SortColumn != "" {
		out.SortColumn = o.SortColumn
	}
	if o.SortDirection != "" {
		out.SortDirection = o.SortDirection
	}
	if o.Page != 0 {
		out.Page = o.Page
	}
	if o.PageSize != 0 {
		out.PageSize = o.PageSize
	}
	return out
}

// PageRequest is the body of a POST <resource>/query call. Filters are
// flattened into the top-level JSON object next to the paging fields.
type PageRequest struct {
	FirstIndexInPage int            `json:"firstIndexInPage,omitempty"`
	LastIndexInPage  int            `json:"lastIndexInPage,omitempty"`
	Pageable         bool           `json:"pageable"`
	SortColumn       string         `json:"sortColumn,omitempty"`
	SortDirection    SortDirection  `json:"sortDirection,omitempty"`
	Filters          map[string]any `json:"-"`
}

// MarshalJSON flattens Filters into the request object. Paging fields win
// over a filter with the same name.
func (r PageRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Filters)+5)
	for k, v := range r.Filters {
		out[k] = v
	}
	if r.Pageable {
		out["firstIndexInPage"] = r.FirstIndexInPage
		out["lastIndexInPage"] = r.LastIndexInPage
	} else {
		delete(out, "firstIndexInPage")
		delete(out, "lastIndexInPage")
	}
	out["pageable"] = r.Pageable
	if r.SortColumn != "" {
		out["sortColumn"] = r.SortColumn
		out["sortDirection"] = r.SortDirection
	} else {
		delete(out, "sortColumn")
		delete(out, "sortDirection")
	}
	return json.Marshal(out)
}

// PageEnvelope is the paging payload the backend returns inside an Envelope.
type PageEnvelope[T any] struct {
	List             []T           `json:"list"`
	TotalRecords     int           `json:"totalRecords"`
	FirstIndexInPage int           `json:"firstIndexInPage"`
	LastIndexInPage  int           `json:"lastIndexInPage"`
	Pageable         bool          `json:"pageable"`
	SortColumn       string        `json:"sortColumn,omitempty"`
	SortDirection    SortDirection `json:"sortDirection,omitempty"`
}

// UiPageResult is a PageEnvelope extended with the fields the UI pages on.
type UiPageResult[T any] struct {
	PageEnvelope[T]
	Page        int  `json:"page"`
	PageSize    int  `json:"pageSize"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// NewUiPageResult derives the UI paging fields. TotalPages is always
// recomputed from TotalRecords and the requested pageSize.
func NewUiPageResult[T any](env PageEnvelope[T], page, pageSize int) UiPageResult[T] {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if env.List == nil {
		env.List = []T{}
	}
	total := env.TotalRecords
	if total < 0 {
		total = 0
	}
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	return UiPageResult[T]{
		PageEnvelope: env,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		HasNext:      page < totalPages,
		HasPrevious:  page > 1,
	}
}
