// Package feature binds the HR entities to the generic query service: each
// entity gets its filters, sort column mapping and mock-mode predicate.
package feature

import (
	"time"

	"github.com/pitabwire/staffdesk/internal/backend"
	"github.com/pitabwire/staffdesk/internal/casing"
	"github.com/pitabwire/staffdesk/internal/query"
)

// Resource paths.
const (
	Employees    = "employees"
	Departments  = "departments"
	JobRoles     = "job-roles"
	Competencies = "competencies"
	CourseEvents = "course-events"
)

// Options configures Build.
type Options struct {
	// Mock serves every entity from its static dataset instead of the backend.
	Mock      bool
	MockDelay time.Duration
	BulkLimit int
	// MaxPageSize caps requested page sizes; zero keeps the service default.
	MaxPageSize int
	Recorder    query.Recorder
	// Sequencer, when set, drops superseded queries per session.
	Sequencer *query.Sequencer
}

// Build returns one query.Resource per entity, in a stable order.
func Build(caller backend.Caller, opts Options) []query.Resource {
	return []query.Resource{
		query.NewEndpoint(configure(NewEmployees(caller), opts, MockEmployees()), opts.Sequencer),
		query.NewEndpoint(configure(NewDepartments(caller), opts, MockDepartments()), opts.Sequencer),
		query.NewEndpoint(configure(NewJobRoles(caller), opts, MockJobRoles()), opts.Sequencer),
		query.NewEndpoint(configure(NewCompetencies(caller), opts, MockCompetencies()), opts.Sequencer),
		query.NewEndpoint(configure(NewCourseEvents(caller), opts, MockCourseEvents()), opts.Sequencer),
	}
}

func configure[T any, P query.Params](svc *query.Service[T, P], opts Options, data []T) *query.Service[T, P] {
	if opts.Recorder != nil {
		svc.WithRecorder(opts.Recorder)
	}
	svc.WithBulkLimit(opts.BulkLimit)
	svc.WithMaxPageSize(opts.MaxPageSize)
	if opts.Mock {
		svc.WithMockData(data, opts.MockDelay)
	}
	return svc
}

// sortMap returns a SortColumn hook that looks columns up in m and falls
// back to snake_case.
func sortMap(m map[string]string) func(string) string {
	return func(col string) string {
		if mapped, ok := m[col]; ok {
			return mapped
		}
		return casing.CamelToSnake(col)
	}
}
