package models

import (
	"time"

	"registrar/internal/token"
	id "registrar/pkg/domain"
)

// UserView is the client-facing projection of a principal and its student record.
type UserView struct {
	ID            id.PrincipalID `json:"id"`
	Email         string         `json:"email"`
	FirstName     string         `json:"firstName"`
	LastName      string         `json:"lastName"`
	Role          Role           `json:"role"`
	StudentID     *id.StudentID  `json:"studentId,omitempty"`
	StudentNumber string         `json:"studentNumber,omitempty"`
	Status        Status         `json:"status,omitempty"`
}

func NewUserView(p *Principal, record *StudentRecord) UserView {
	view := UserView{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
	}
	if record != nil {
		studentID := record.ID
		view.StudentID = &studentID
		view.StudentNumber = record.StudentNumber
		view.Status = record.Status
	}
	return view
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	User         UserView `json:"user"`
	AccessToken  string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"`
}

func NewAuthResult(user UserView, pair *token.Pair) *AuthResult {
	return &AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}
}

// CourseSummary is the course shown inside a profile.
type CourseSummary struct {
	ID       id.CourseID `json:"id"`
	Name     string      `json:"name"`
	Code     string      `json:"code"`
	Duration int         `json:"duration"`
}

type StudentInfo struct {
	StudentID      id.StudentID   `json:"studentId"`
	StudentNumber  string         `json:"studentNumber"`
	EnrollmentDate time.Time      `json:"enrollmentDate"`
	Status         Status         `json:"status"`
	GPA            float64        `json:"gpa"`
	Phone          string         `json:"phone"`
	Address        string         `json:"address"`
	Course         *CourseSummary `json:"course"`
}

// Profile is the joined principal, student record and course view.
type Profile struct {
	ID          id.PrincipalID `json:"id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	Role        Role           `json:"role"`
	CreatedAt   time.Time      `json:"createdAt"`
	StudentInfo *StudentInfo   `json:"studentInfo,omitempty"`
}

type LogoutResponse struct {
	Message string `json:"message"`
}
