package feature

import (
	"fmt"

	"github.com/pitabwire/staffdesk/model"
)

// MockDepartments returns the static department dataset.
func MockDepartments() []model.Department {
	return []model.Department{
		{ID: "d-01", DepartmentCode: "HQ", DepartmentName: "Head Office", ManagerName: "Grace Liu", IsActive: true},
		{ID: "d-02", DepartmentCode: "ENG", DepartmentName: "Engineering", ParentID: "d-01", ManagerName: "Ravi Menon", IsActive: true},
		{ID: "d-03", DepartmentCode: "HR", DepartmentName: "Human Resources", ParentID: "d-01", ManagerName: "Amara Okafor", IsActive: true},
		{ID: "d-04", DepartmentCode: "FIN", DepartmentName: "Finance", ParentID: "d-01", ManagerName: "Tomas Berg", IsActive: true},
		{ID: "d-05", DepartmentCode: "PLT", DepartmentName: "Platform", ParentID: "d-02", ManagerName: "Mei Tanaka", IsActive: true},
		{ID: "d-06", DepartmentCode: "APP", DepartmentName: "Applications", ParentID: "d-02", IsActive: false},
	}
}

// MockJobRoles returns the static job role dataset.
func MockJobRoles() []model.JobRole {
	return []model.JobRole{
		{ID: "r-01", RoleCode: "SWE1", RoleName: "Software Engineer", DepartmentID: "d-02", Level: 1, IsActive: true},
		{ID: "r-02", RoleCode: "SWE2", RoleName: "Senior Software Engineer", DepartmentID: "d-02", Level: 2, IsActive: true},
		{ID: "r-03", RoleCode: "SRE1", RoleName: "Site Reliability Engineer", DepartmentID: "d-05", Level: 1, IsActive: true},
		{ID: "r-04", RoleCode: "HRBP", RoleName: "HR Business Partner", DepartmentID: "d-03", Level: 2, IsActive: true},
		{ID: "r-05", RoleCode: "REC", RoleName: "Recruiter", DepartmentID: "d-03", Level: 1, IsActive: true},
		{ID: "r-06", RoleCode: "ACC", RoleName: "Accountant", DepartmentID: "d-04", Level: 1, IsActive: true},
		{ID: "r-07", RoleCode: "CTRL", RoleName: "Financial Controller", DepartmentID: "d-04", Level: 3, IsActive: true},
		{ID: "r-08", RoleCode: "MOB", RoleName: "Mobile Developer", DepartmentID: "d-06", Level: 1, IsActive: false},
	}
}

// MockCompetencies returns the static competency dataset.
func MockCompetencies() []model.Competency {
	return []model.Competency{
		{ID: "c-01", CompetencyCode: "GO", CompetencyName: "Go Programming", Category: "TECHNICAL", IsActive: true},
		{ID: "c-02", CompetencyCode: "K8S", CompetencyName: "Kubernetes Operations", Category: "TECHNICAL", IsActive: true},
		{ID: "c-03", CompetencyCode: "SQL", CompetencyName: "Relational Data Modelling", Category: "TECHNICAL", IsActive: true},
		{ID: "c-04", CompetencyCode: "COACH", CompetencyName: "Coaching", Category: "LEADERSHIP", IsActive: true},
		{ID: "c-05", CompetencyCode: "HIRE", CompetencyName: "Structured Interviewing", Category: "LEADERSHIP", IsActive: true},
		{ID: "c-06", CompetencyCode: "GDPR", CompetencyName: "Data Protection", Category: "COMPLIANCE", IsActive: true},
		{ID: "c-07", CompetencyCode: "AML", CompetencyName: "Anti Money Laundering", Category: "COMPLIANCE", IsActive: true},
		{ID: "c-08", CompetencyCode: "COBOL", CompetencyName: "Mainframe Maintenance", Category: "TECHNICAL", IsActive: false},
	}
}

// MockCourseEvents returns the static course event dataset.
func MockCourseEvents() []model.CourseEvent {
	return []model.CourseEvent{
		{ID: "ce-01", EventCode: "GO-2501", CourseName: "Go Fundamentals", CompetencyID: "c-01", Location: "Room A", StartDate: "2025-01-13", EndDate: "2025-01-15", Capacity: 20, Status: model.CourseEventCompleted, IsActive: true},
		{ID: "ce-02", EventCode: "K8S-2502", CourseName: "Kubernetes in Practice", CompetencyID: "c-02", Location: "Online", StartDate: "2025-02-10", EndDate: "2025-02-12", Capacity: 30, Status: model.CourseEventCompleted, IsActive: true},
		{ID: "ce-03", EventCode: "COACH-2503", CourseName: "Coaching for Managers", CompetencyID: "c-04", Location: "Room B", StartDate: "2025-03-03", EndDate: "2025-03-04", Capacity: 12, Status: model.CourseEventCancelled, IsActive: false},
		{ID: "ce-04", EventCode: "GDPR-2504", CourseName: "Data Protection Essentials", CompetencyID: "c-06", Location: "Online", StartDate: "2025-04-07", EndDate: "2025-04-07", Capacity: 100, Status: model.CourseEventCompleted, IsActive: true},
		{ID: "ce-05", EventCode: "SQL-2506", CourseName: "Data Modelling Workshop", CompetencyID: "c-03", Location: "Room A", StartDate: "2025-06-16", EndDate: "2025-06-18", Capacity: 16, Status: model.CourseEventCompleted, IsActive: true},
		{ID: "ce-06", EventCode: "HIRE-2509", CourseName: "Interviewer Training", CompetencyID: "c-05", Location: "Room C", StartDate: "2025-09-08", EndDate: "2025-09-08", Capacity: 10, Status: model.CourseEventOpen, IsActive: true},
		{ID: "ce-07", EventCode: "GO-2510", CourseName: "Advanced Go", CompetencyID: "c-01", Location: "Room A", StartDate: "2025-10-20", EndDate: "2025-10-22", Capacity: 20, Status: model.CourseEventOpen, IsActive: true},
		{ID: "ce-08", EventCode: "AML-2511", CourseName: "AML Refresher", CompetencyID: "c-07", Location: "Online", StartDate: "2025-11-03", EndDate: "2025-11-03", Capacity: 80, Status: model.CourseEventPlanned, IsActive: true},
		{ID: "ce-09", EventCode: "K8S-2512", CourseName: "Cluster Operations", CompetencyID: "c-02", Location: "Room B", StartDate: "2025-12-01", EndDate: "2025-12-03", Capacity: 24, Status: model.CourseEventPlanned, IsActive: true},
		{ID: "ce-10", EventCode: "COACH-2601", CourseName: "Coaching Circles", CompetencyID: "c-04", Location: "Room C", StartDate: "2026-01-12", EndDate: "2026-01-12", Capacity: 12, Status: model.CourseEventPlanned, IsActive: true},
	}
}

var (
	givenNames  = []string{"Ann", "Bilal", "Chen", "Dana", "Emeka", "Fatima", "Gustav", "Hana", "Ivan", "Julia"}
	familyNames = []string{"Adams", "Bauer", "Costa", "Dubois", "Eriksen", "Fischer", "Garcia"}
)

// MockEmployees returns the static employee dataset of 30 people spread
// over the departments and roles of MockDepartments and MockJobRoles.
func MockEmployees() []model.Employee {
	depts := MockDepartments()
	roles := MockJobRoles()
	deptName := make(map[string]string, len(depts))
	for _, d := range depts {
		deptName[d.ID] = d.DepartmentName
	}

	out := make([]model.Employee, 30)
	for i := range out {
		role := roles[i%len(roles)]
		out[i] = model.Employee{
			ID:             fmt.Sprintf("e-%03d", i+1),
			EmployeeNo:     fmt.Sprintf("E%05d", 10001+i),
			FullName:       givenNames[i%len(givenNames)] + " " + familyNames[(i*3)%len(familyNames)],
			DepartmentID:   role.DepartmentID,
			DepartmentName: deptName[role.DepartmentID],
			JobRoleID:      role.ID,
			JobRoleName:    role.RoleName,
			HireDate:       fmt.Sprintf("%d-%02d-%02d", 2016+i%9, i%12+1, i%28+1),
			IsActive:       i%6 != 5,
		}
		out[i].Email = fmt.Sprintf("%s@staffdesk.example", out[i].EmployeeNo)
	}
	return out
}
