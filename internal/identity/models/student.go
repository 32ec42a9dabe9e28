package models

import (
	"fmt"
	"strings"
	"time"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

// Uniqueness failures a store reports when inserting a student record. Both match
// sentinel.ErrConflict.
var (
	ErrStudentNumberTaken = fmt.Errorf("student number already exists: %w", sentinel.ErrConflict)
	ErrPrincipalHasRecord = fmt.Errorf("principal already has a student record: %w", sentinel.ErrConflict)
)

// Status is the academic standing of a student record.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusGraduated Status = "graduated"
	StatusSuspended Status = "suspended"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusGraduated, StatusSuspended:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus validates a client supplied status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of: active, inactive, graduated, suspended")
	}
	return status, nil
}

// StudentRecord is the enrollment record owned by exactly one student principal.
//
// Invariants:
//   - PrincipalID is set and immutable
//   - StudentNumber is non-empty
//   - GPA is within 0.00–4.00
type StudentRecord struct {
	ID             id.StudentID   `json:"id"`
	PrincipalID    id.PrincipalID `json:"principalId"`
	StudentNumber  string         `json:"studentNumber"`
	CourseID       *id.CourseID   `json:"courseId"`
	EnrollmentDate time.Time      `json:"enrollmentDate"`
	Status         Status         `json:"status"`
	GPA            float64        `json:"gpa"`
	Phone          string         `json:"phone"`
	Address        string         `json:"address"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func NewStudentRecord(
	studentID id.StudentID,
	principalID id.PrincipalID,
	studentNumber string,
	courseID *id.CourseID,
	phone string,
	address string,
	now time.Time,
) (*StudentRecord, error) {
	studentNumber = strings.TrimSpace(studentNumber)
	if principalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "student record requires an owning principal")
	}
	if studentNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "student number cannot be empty")
	}
	return &StudentRecord{
		ID:             studentID,
		PrincipalID:    principalID,
		StudentNumber:  studentNumber,
		CourseID:       courseID,
		EnrollmentDate: now.UTC().Truncate(24 * time.Hour),
		Status:         StatusActive,
		Phone:          strings.TrimSpace(phone),
		Address:        strings.TrimSpace(address),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (r *StudentRecord) IsActive() bool {
	return r.Status == StatusActive
}

// HasCourse reports whether the record references a course.
func (r *StudentRecord) HasCourse() bool {
	return r.CourseID != nil && !r.CourseID.IsNil()
}

// InCourse reports whether the record references courseID.
func (r *StudentRecord) InCourse(courseID id.CourseID) bool {
	return r.HasCourse() && *r.CourseID == courseID
}
