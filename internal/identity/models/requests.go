package models

import (
	"strings"

	id "registrar/pkg/domain"
	"registrar/pkg/platform/validation"
	pstrings "registrar/pkg/platform/strings"
)

// RegisterRequest is the self-service student sign-up payload.
type RegisterRequest struct {
	Email         string  `json:"email" validate:"required,email,max=100"`
	Password      string  `json:"password" validate:"required,min=6,max=72"`
	FirstName     string  `json:"firstName" validate:"required,min=2,max=50"`
	LastName      string  `json:"lastName" validate:"required,min=2,max=50"`
	StudentNumber string  `json:"studentNumber" validate:"required,alphanum,min=5,max=20"`
	CourseID      *string `json:"courseId" validate:"omitempty,uuid"`
	Phone         *string `json:"phone" validate:"omitempty,phone,max=20"`
	Address       *string `json:"address" validate:"omitempty,max=500"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = pstrings.NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.StudentNumber = strings.TrimSpace(r.StudentNumber)
	if r.CourseID != nil && strings.TrimSpace(*r.CourseID) == "" {
		r.CourseID = nil
	}
}

func (r *RegisterRequest) Validate() error {
	return validation.Struct(r)
}

// Course returns the parsed optional course reference.
func (r *RegisterRequest) Course() (*id.CourseID, error) {
	if r.CourseID == nil {
		return nil, nil
	}
	courseID, err := id.ParseCourseID(strings.TrimSpace(*r.CourseID))
	if err != nil {
		return nil, err
	}
	return &courseID, nil
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = pstrings.NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validation.Struct(r)
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (r *RefreshRequest) Normalize() {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
}

func (r *RefreshRequest) Validate() error {
	return validation.Struct(r)
}

// BootstrapAdmin describes the admin principal ensured at startup.
type BootstrapAdmin struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=6,max=72"`
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
}
