package models

import (
	"strings"
	"time"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	pstrings "registrar/pkg/platform/strings"
)

const (
	MinDuration     = 1
	MaxDuration     = 104
	MinCapacity     = 1
	MaxCapacity     = 1000
	DefaultCapacity = 50
)

// Course is an offering students enroll into.
//
// Invariants:
//   - Code is non-empty, upper-cased and globally unique
//   - Duration is within 1–104 weeks
//   - Capacity is within 1–1000
//
// Enrolled counts are derived at read time and never stored on the course.
type Course struct {
	ID          id.CourseID `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Duration    int         `json:"duration"`
	Capacity    int         `json:"maxStudents"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func NewCourse(
	courseID id.CourseID,
	code string,
	name string,
	duration int,
	capacity int,
	description string,
	now time.Time,
) (*Course, error) {
	c := &Course{
		ID:          courseID,
		Code:        pstrings.NormalizeCode(code),
		Name:        strings.TrimSpace(name),
		Duration:    duration,
		Capacity:    capacity,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Course) check() error {
	if c.Code == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "course code cannot be empty")
	}
	if c.Name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "course name cannot be empty")
	}
	if c.Duration < MinDuration || c.Duration > MaxDuration {
		return dErrors.New(dErrors.CodeInvariantViolation, "course duration must be between 1 and 104 weeks")
	}
	if c.Capacity < MinCapacity || c.Capacity > MaxCapacity {
		return dErrors.New(dErrors.CodeInvariantViolation, "course capacity must be between 1 and 1000")
	}
	return nil
}

// HasRoom reports whether one more active student fits given the current active count.
func (c *Course) HasRoom(activeEnrolled int) bool {
	return activeEnrolled < c.Capacity
}

// Apply merges a validated patch into the course.
func (c *Course) Apply(req *UpdateCourseRequest, now time.Time) error {
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		c.Code = pstrings.NormalizeCode(*req.Code)
	}
	if req.Duration != nil {
		c.Duration = *req.Duration
	}
	if req.Capacity != nil {
		c.Capacity = *req.Capacity
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
	}
	c.UpdatedAt = now
	return c.check()
}

// CourseView is a course with its derived enrollment counts.
type CourseView struct {
	Course
	Enrolled       int `json:"enrolledStudents"`
	AvailableSlots int `json:"availableSlots"`
}

func NewCourseView(c Course, enrolled int) CourseView {
	return CourseView{Course: c, Enrolled: enrolled, AvailableSlots: c.Capacity - enrolled}
}

// DeleteCourseResult reports the effect of a course removal.
type DeleteCourseResult struct {
	CourseID           id.CourseID `json:"courseId"`
	UnenrolledStudents int         `json:"unenrolledStudents"`
}

type DeleteStudentResult struct {
	StudentID id.StudentID `json:"studentId"`
}
