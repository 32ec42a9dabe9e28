package models

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	identity "registrar/internal/identity/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// StudentSort and CourseSort are the allow-listed sort keys.
type (
	StudentSort string
	CourseSort  string
)

const (
	StudentSortName       StudentSort = "name"
	StudentSortEmail      StudentSort = "email"
	StudentSortCreatedAt  StudentSort = "created_at"
	StudentSortCourseName StudentSort = "course_name"

	CourseSortName      CourseSort = "name"
	CourseSortCode      CourseSort = "code"
	CourseSortDuration  CourseSort = "duration"
	CourseSortCreatedAt CourseSort = "created_at"
)

// PageRequest is a validated page window.
type PageRequest struct {
	Page      int
	Limit     int
	SortOrder SortOrder
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes the window returned to clients.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

func NewPagination(p PageRequest, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{CurrentPage: p.Page, TotalPages: pages, TotalItems: total, ItemsPerPage: p.Limit}
}

type StudentQuery struct {
	PageRequest
	Search   string
	CourseID *id.CourseID
	Status   *identity.Status
	SortBy   StudentSort
}

type CourseQuery struct {
	PageRequest
	Search      string
	MinDuration *int
	MaxDuration *int
	SortBy      CourseSort
}

type StudentPage struct {
	Students   []StudentView `json:"students"`
	Pagination Pagination    `json:"pagination"`
}

type CoursePage struct {
	Courses    []CourseView `json:"courses"`
	Pagination Pagination   `json:"pagination"`
}

func parsePage(values url.Values) (PageRequest, error) {
	p := PageRequest{Page: DefaultPage, Limit: DefaultLimit, SortOrder: SortDesc}
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, dErrors.New(dErrors.CodeValidation, "page must be a positive integer")
		}
		p.Page = n
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
		}
		if n > MaxLimit {
			return p, dErrors.New(dErrors.CodeValidation, "limit must be at most 100")
		}
		p.Limit = n
	}
	// the row offset must stay representable in every store
	if p.Page-1 > math.MaxInt32/p.Limit {
		return p, dErrors.New(dErrors.CodeValidation, "page is out of range")
	}
	if raw := strings.TrimSpace(values.Get("sortOrder")); raw != "" {
		switch SortOrder(strings.ToUpper(raw)) {
		case SortAsc:
			p.SortOrder = SortAsc
		case SortDesc:
			p.SortOrder = SortDesc
		default:
			return p, dErrors.New(dErrors.CodeValidation, "sortOrder must be one of: ASC, DESC")
		}
	}
	return p, nil
}

// ParseStudentQuery reads the student list filters from query parameters.
func ParseStudentQuery(values url.Values) (StudentQuery, error) {
	page, err := parsePage(values)
	if err != nil {
		return StudentQuery{}, err
	}
	q := StudentQuery{PageRequest: page, Search: strings.TrimSpace(values.Get("search")), SortBy: StudentSortCreatedAt}

	if raw := strings.TrimSpace(values.Get("sortBy")); raw != "" {
		switch sort := StudentSort(raw); sort {
		case StudentSortName, StudentSortEmail, StudentSortCreatedAt, StudentSortCourseName:
			q.SortBy = sort
		default:
			return StudentQuery{}, dErrors.New(dErrors.CodeValidation, "sortBy must be one of: name, email, created_at, course_name")
		}
	}
	if raw := strings.TrimSpace(values.Get("courseId")); raw != "" {
		courseID, err := id.ParseCourseID(raw)
		if err != nil {
			return StudentQuery{}, dErrors.New(dErrors.CodeValidation, "courseId must be a valid id")
		}
		q.CourseID = &courseID
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status, err := identity.ParseStatus(raw)
		if err != nil {
			return StudentQuery{}, err
		}
		q.Status = &status
	}
	return q, nil
}

// ParseCourseQuery reads the course list filters from query parameters.
func ParseCourseQuery(values url.Values) (CourseQuery, error) {
	page, err := parsePage(values)
	if err != nil {
		return CourseQuery{}, err
	}
	q := CourseQuery{PageRequest: page, Search: strings.TrimSpace(values.Get("search")), SortBy: CourseSortCreatedAt}

	if raw := strings.TrimSpace(values.Get("sortBy")); raw != "" {
		switch sort := CourseSort(raw); sort {
		case CourseSortName, CourseSortCode, CourseSortDuration, CourseSortCreatedAt:
			q.SortBy = sort
		default:
			return CourseQuery{}, dErrors.New(dErrors.CodeValidation, "sortBy must be one of: name, code, duration, created_at")
		}
	}
	bound := func(key string) (*int, error) {
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, dErrors.New(dErrors.CodeValidation, key+" must be a non-negative integer")
		}
		return &n, nil
	}
	if q.MinDuration, err = bound("minDuration"); err != nil {
		return CourseQuery{}, err
	}
	if q.MaxDuration, err = bound("maxDuration"); err != nil {
		return CourseQuery{}, err
	}
	if q.MinDuration != nil && q.MaxDuration != nil && *q.MinDuration > *q.MaxDuration {
		return CourseQuery{}, dErrors.New(dErrors.CodeValidation, "minDuration must not exceed maxDuration")
	}
	return q, nil
}
