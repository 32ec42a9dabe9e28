package models

import (
	"time"

	identity "registrar/internal/identity/models"
	id "registrar/pkg/domain"
)

// StudentView joins a student record with its principal and course.
type StudentView struct {
	ID             id.StudentID            `json:"id"`
	PrincipalID    id.PrincipalID          `json:"principalId"`
	StudentNumber  string                  `json:"studentNumber"`
	FirstName      string                  `json:"firstName"`
	LastName       string                  `json:"lastName"`
	Email          string                  `json:"email"`
	EnrollmentDate time.Time               `json:"enrollmentDate"`
	Status         identity.Status         `json:"status"`
	GPA            float64                 `json:"gpa"`
	Phone          string                  `json:"phone"`
	Address        string                  `json:"address"`
	Course         *identity.CourseSummary `json:"course"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

func NewStudentView(p identity.Principal, r identity.StudentRecord, course *Course) StudentView {
	view := StudentView{
		ID:             r.ID,
		PrincipalID:    p.ID,
		StudentNumber:  r.StudentNumber,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		EnrollmentDate: r.EnrollmentDate,
		Status:         r.Status,
		GPA:            r.GPA,
		Phone:          r.Phone,
		Address:        r.Address,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if course != nil {
		view.Course = &identity.CourseSummary{
			ID:       course.ID,
			Name:     course.Name,
			Code:     course.Code,
			Duration: course.Duration,
		}
	}
	return view
}

// CourseRoster lists the students referencing one course.
type CourseRoster struct {
	Course   CourseView    `json:"course"`
	Students []StudentView `json:"students"`
}
