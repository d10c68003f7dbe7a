package model

// Employee is a member of staff.
type Employee struct {
	ID             string `json:"id"`
	EmployeeNo     string `json:"employeeNo"`
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	DepartmentID   string `json:"departmentId"`
	DepartmentName string `json:"departmentName"`
	JobRoleID      string `json:"jobRoleId"`
	JobRoleName    string `json:"jobRoleName"`
	HireDate       string `json:"hireDate"`
	IsActive       bool   `json:"isActive"`
}

// EmployeeSearch filters employees.
type EmployeeSearch struct {
	SearchParams
	DepartmentID string `json:"departmentId,omitempty"`
	JobRoleID    string `json:"jobRoleId,omitempty"`
}

// Department is an organisational unit. ParentID is empty for the root.
type Department struct {
	ID             string `json:"id"`
	DepartmentCode string `json:"departmentCode"`
	DepartmentName string `json:"departmentName"`
	ParentID       string `json:"parentId,omitempty"`
	ManagerName    string `json:"managerName,omitempty"`
	IsActive       bool   `json:"isActive"`
}

// DepartmentSearch filters departments.
type DepartmentSearch struct {
	SearchParams
	ParentID string `json:"parentId,omitempty"`
}

// JobRole is a position within a department.
type JobRole struct {
	ID           string `json:"id"`
	RoleCode     string `json:"roleCode"`
	RoleName     string `json:"roleName"`
	DepartmentID string `json:"departmentId"`
	Level        int    `json:"level"`
	Description  string `json:"description,omitempty"`
	IsActive     bool   `json:"isActive"`
}

// JobRoleSearch filters job roles. Level 0 means any level.
type JobRoleSearch struct {
	SearchParams
	DepartmentID string `json:"departmentId,omitempty"`
	Level        int    `json:"level,omitempty"`
}

// Competency is a skill that can be assessed or trained.
type Competency struct {
	ID             string `json:"id"`
	CompetencyCode string `json:"competencyCode"`
	CompetencyName string `json:"competencyName"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	IsActive       bool   `json:"isActive"`
}

// CompetencySearch filters competencies.
type CompetencySearch struct {
	SearchParams
	Category string `json:"category,omitempty"`
}

// Course event statuses.
const (
	CourseEventPlanned   = "PLANNED"
	CourseEventOpen      = "OPEN"
	CourseEventCompleted = "COMPLETED"
	CourseEventCancelled = "CANCELLED"
)

// CourseEvent is a scheduled training session. Dates are ISO yyyy-mm-dd.
type CourseEvent struct {
	ID           string `json:"id"`
	EventCode    string `json:"eventCode"`
	CourseName   string `json:"courseName"`
	CompetencyID string `json:"competencyId,omitempty"`
	Location     string `json:"location,omitempty"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Capacity     int    `json:"capacity"`
	Status       string `json:"status"`
	IsActive     bool   `json:"isActive"`
}

// CourseEventSearch filters course events. StartFrom and StartTo bound
// StartDate inclusively.
type CourseEventSearch struct {
	SearchParams
	Status    string `json:"status,omitempty"`
	StartFrom string `json:"startFrom,omitempty"`
	StartTo   string `json:"startTo,omitempty"`
}
