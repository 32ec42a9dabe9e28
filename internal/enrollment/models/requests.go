package models

import (
	"bytes"
	"encoding/json"
	"strings"

	identity "registrar/internal/identity/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/validation"
)

type CreateCourseRequest struct {
	Name        string  `json:"courseName" validate:"required,min=3,max=100"`
	Code        string  `json:"courseCode" validate:"required,alphanum,min=3,max=20"`
	Duration    int     `json:"courseDuration" validate:"required,min=1,max=104"`
	Description *string `json:"courseDescription" validate:"omitempty,max=1000"`
	Capacity    *int    `json:"maxStudents" validate:"omitempty,min=1,max=1000"`
}

func (r *CreateCourseRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Code = strings.TrimSpace(r.Code)
}

func (r *CreateCourseRequest) Validate() error {
	return validation.Struct(r)
}

type UpdateCourseRequest struct {
	Name        *string `json:"courseName" validate:"omitempty,min=3,max=100"`
	Code        *string `json:"courseCode" validate:"omitempty,alphanum,min=3,max=20"`
	Duration    *int    `json:"courseDuration" validate:"omitempty,min=1,max=104"`
	Description *string `json:"courseDescription" validate:"omitempty,max=1000"`
	Capacity    *int    `json:"maxStudents" validate:"omitempty,min=1,max=1000"`
}

func (r *UpdateCourseRequest) IsEmpty() bool {
	return r.Name == nil && r.Code == nil && r.Duration == nil && r.Description == nil && r.Capacity == nil
}

func (r *UpdateCourseRequest) Validate() error {
	if r.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	return validation.Struct(r)
}

// OptionalCourseID distinguishes an absent course field from an explicit null.
// Set is true whenever the key was present; Value is nil for null.
type OptionalCourseID struct {
	Set   bool
	Value *string
}

func (o *OptionalCourseID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Parse returns the target course, nil when the patch clears the reference.
func (o OptionalCourseID) Parse() (*id.CourseID, error) {
	if o.Value == nil || strings.TrimSpace(*o.Value) == "" {
		return nil, nil
	}
	courseID, err := id.ParseCourseID(strings.TrimSpace(*o.Value))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "courseId must be a valid id")
	}
	return &courseID, nil
}

type UpdateStudentRequest struct {
	FirstName *string          `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName  *string          `json:"lastName" validate:"omitempty,min=2,max=50"`
	CourseID  OptionalCourseID `json:"courseId" validate:"-"`
	Phone     *string          `json:"phone" validate:"omitempty,phone,max=20"`
	Address   *string          `json:"address" validate:"omitempty,max=500"`
	Status    *string          `json:"status" validate:"omitempty,oneof=active inactive graduated suspended"`
}

func (r *UpdateStudentRequest) IsEmpty() bool {
	return r.FirstName == nil && r.LastName == nil && !r.CourseID.Set &&
		r.Phone == nil && r.Address == nil && r.Status == nil
}

func (r *UpdateStudentRequest) Validate() error {
	if r.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	if err := validation.Struct(r); err != nil {
		return err
	}
	_, err := r.CourseID.Parse()
	return err
}

// TargetStatus returns the requested status, if any.
func (r *UpdateStudentRequest) TargetStatus() (*identity.Status, error) {
	if r.Status == nil {
		return nil, nil
	}
	status, err := identity.ParseStatus(*r.Status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
