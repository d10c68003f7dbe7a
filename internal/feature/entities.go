package feature

import (
	"github.com/pitabwire/staffdesk/internal/backend"
	"github.com/pitabwire/staffdesk/internal/query"
	"github.com/pitabwire/staffdesk/model"
)

// NewEmployees binds employees. Sort columns name, department and hireDate
// map to full_name, department_name and hire_date.
func NewEmployees(caller backend.Caller) *query.Service[model.Employee, model.EmployeeSearch] {
	return query.New(Employees, caller, query.Hooks[model.Employee, model.EmployeeSearch]{
		SortColumn: sortMap(map[string]string{
			"name":       "full_name",
			"department": "department_name",
			"hireDate":   "hire_date",
		}),
		Filters: func(p model.EmployeeSearch) map[string]any {
			return map[string]any{
				"departmentId": p.DepartmentID,
				"jobRoleId":    p.JobRoleID,
			}
		},
		Match: func(e model.Employee, p model.EmployeeSearch) bool {
			if p.DepartmentID != "" && e.DepartmentID != p.DepartmentID {
				return false
			}
			if p.JobRoleID != "" && e.JobRoleID != p.JobRoleID {
				return false
			}
			return query.DefaultMatch(e, p)
		},
		ID:     func(e model.Employee) string { return e.ID },
		WithID: func(e model.Employee, id string) model.Employee { e.ID = id; return e },
	})
}

// NewDepartments binds departments.
func NewDepartments(caller backend.Caller) *query.Service[model.Department, model.DepartmentSearch] {
	return query.New(Departments, caller, query.Hooks[model.Department, model.DepartmentSearch]{
		SortColumn: sortMap(map[string]string{"name": "department_name"}),
		Filters: func(p model.DepartmentSearch) map[string]any {
			return map[string]any{"parentId": p.ParentID}
		},
		Match: func(d model.Department, p model.DepartmentSearch) bool {
			if p.ParentID != "" && d.ParentID != p.ParentID {
				return false
			}
			return query.DefaultMatch(d, p)
		},
		ID:     func(d model.Department) string { return d.ID },
		WithID: func(d model.Department, id string) model.Department { d.ID = id; return d },
	})
}

// NewJobRoles binds job roles.
func NewJobRoles(caller backend.Caller) *query.Service[model.JobRole, model.JobRoleSearch] {
	return query.New(JobRoles, caller, query.Hooks[model.JobRole, model.JobRoleSearch]{
		Filters: func(p model.JobRoleSearch) map[string]any {
			return map[string]any{
				"departmentId": p.DepartmentID,
				"level":        p.Level,
			}
		},
		Match: func(r model.JobRole, p model.JobRoleSearch) bool {
			if p.DepartmentID != "" && r.DepartmentID != p.DepartmentID {
				return false
			}
			if p.Level != 0 && r.Level != p.Level {
				return false
			}
			return query.DefaultMatch(r, p)
		},
		ID:     func(r model.JobRole) string { return r.ID },
		WithID: func(r model.JobRole, id string) model.JobRole { r.ID = id; return r },
	})
}

// NewCompetencies binds competencies.
func NewCompetencies(caller backend.Caller) *query.Service[model.Competency, model.CompetencySearch] {
	return query.New(Competencies, caller, query.Hooks[model.Competency, model.CompetencySearch]{
		Filters: func(p model.CompetencySearch) map[string]any {
			return map[string]any{"category": p.Category}
		},
		Match: func(c model.Competency, p model.CompetencySearch) bool {
			if p.Category != "" && c.Category != p.Category {
				return false
			}
			return query.DefaultMatch(c, p)
		},
		ID:     func(c model.Competency) string { return c.ID },
		WithID: func(c model.Competency, id string) model.Competency { c.ID = id; return c },
	})
}

// NewCourseEvents binds course events. StartFrom and StartTo bound StartDate
// inclusively; ISO dates compare correctly as strings.
func NewCourseEvents(caller backend.Caller) *query.Service[model.CourseEvent, model.CourseEventSearch] {
	return query.New(CourseEvents, caller, query.Hooks[model.CourseEvent, model.CourseEventSearch]{
		Filters: func(p model.CourseEventSearch) map[string]any {
			return map[string]any{
				"status":    p.Status,
				"startFrom": p.StartFrom,
				"startTo":   p.StartTo,
			}
		},
		Match: func(e model.CourseEvent, p model.CourseEventSearch) bool {
			if p.Status != "" && e.Status != p.Status {
				return false
			}
			if p.StartFrom != "" && e.StartDate < p.StartFrom {
				return false
			}
			if p.StartTo != "" && e.StartDate > p.StartTo {
				return false
			}
			return query.DefaultMatch(e, p)
		},
		ID:     func(e model.CourseEvent) string { return e.ID },
		WithID: func(e model.CourseEvent, id string) model.CourseEvent { e.ID = id; return e },
	})
}
