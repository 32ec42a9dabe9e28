package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	enrollment "registrar/internal/enrollment/models"
	identity "registrar/internal/identity/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	pstrings "registrar/pkg/platform/strings"
)

func (s *Store) CreateCourse(ctx context.Context, c *enrollment.Course) error {
	return s.write(ctx, func() error {
		if s.codeTaken(c.Code, c.ID) {
			return sentinel.ErrConflict
		}
		s.courses[c.ID] = *c
		return nil
	})
}

func (s *Store) UpdateCourse(ctx context.Context, c *enrollment.Course) error {
	return s.write(ctx, func() error {
		if _, ok := s.courses[c.ID]; !ok {
			return sentinel.ErrNotFound
		}
		if s.codeTaken(c.Code, c.ID) {
			return sentinel.ErrConflict
		}
		s.courses[c.ID] = *c
		return nil
	})
}

func (s *Store) codeTaken(code string, except id.CourseID) bool {
	for _, existing := range s.courses {
		if existing.ID != except && strings.EqualFold(existing.Code, code) {
			return true
		}
	}
	return false
}

// DeleteCourse nulls any remaining references, mirroring ON DELETE SET NULL.
func (s *Store) DeleteCourse(ctx context.Context, courseID id.CourseID) error {
	return s.write(ctx, func() error {
		if _, ok := s.courses[courseID]; !ok {
			return sentinel.ErrNotFound
		}
		s.unenroll(courseID, time.Now())
		delete(s.courses, courseID)
		return nil
	})
}

func (s *Store) FindCourse(ctx context.Context, courseID id.CourseID) (*enrollment.Course, error) {
	var (
		c  enrollment.Course
		ok bool
	)
	s.read(ctx, func() { c, ok = s.courses[courseID] })
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

// LockCourse is FindCourse: transactions are already serialized.
func (s *Store) LockCourse(ctx context.Context, courseID id.CourseID) (*enrollment.Course, error) {
	return s.FindCourse(ctx, courseID)
}

func (s *Store) FindCourseView(ctx context.Context, courseID id.CourseID) (*enrollment.CourseView, error) {
	var (
		view enrollment.CourseView
		ok   bool
	)
	s.read(ctx, func() {
		var c enrollment.Course
		if c, ok = s.courses[courseID]; ok {
			view = enrollment.NewCourseView(c, s.countActive(courseID))
		}
	})
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &view, nil
}

func (s *Store) ListCourses(ctx context.Context, q enrollment.CourseQuery) ([]enrollment.CourseView, int, error) {
	var views []enrollment.CourseView
	s.read(ctx, func() {
		for _, c := range s.courses {
			if q.Search != "" && !pstrings.ContainsFold(q.Search, c.Name, c.Code, c.Description) {
				continue
			}
			if q.MinDuration != nil && c.Duration < *q.MinDuration {
				continue
			}
			if q.MaxDuration != nil && c.Duration > *q.MaxDuration {
				continue
			}
			views = append(views, enrollment.NewCourseView(c, s.countActive(c.ID)))
		}
	})

	slices.SortFunc(views, func(a, b enrollment.CourseView) int {
		var r int
		switch q.SortBy {
		case enrollment.CourseSortName:
			r = cmp.Compare(a.Name, b.Name)
		case enrollment.CourseSortCode:
			r = cmp.Compare(a.Code, b.Code)
		case enrollment.CourseSortDuration:
			r = cmp.Compare(a.Duration, b.Duration)
		default:
			r = a.CreatedAt.Compare(b.CreatedAt)
		}
		if r == 0 {
			r = cmp.Compare(a.ID.String(), b.ID.String())
		}
		if q.SortOrder == enrollment.SortDesc {
			r = -r
		}
		return r
	})
	return window(views, q.PageRequest), len(views), nil
}

func (s *Store) CountActiveInCourse(ctx context.Context, courseID id.CourseID) (int, error) {
	var n int
	s.read(ctx, func() { n = s.countActive(courseID) })
	return n, nil
}

func (s *Store) CountReferencing(ctx context.Context, courseID id.CourseID) (int, error) {
	var n int
	s.read(ctx, func() {
		for _, r := range s.students {
			if r.InCourse(courseID) {
				n++
			}
		}
	})
	return n, nil
}

func (s *Store) UnenrollAll(ctx context.Context, courseID id.CourseID) (int, error) {
	var n int
	err := s.write(ctx, func() error {
		n = s.unenroll(courseID, time.Now())
		return nil
	})
	return n, err
}

func (s *Store) unenroll(courseID id.CourseID, now time.Time) int {
	n := 0
	for studentID, r := range s.students {
		if r.InCourse(courseID) {
			r.CourseID = nil
			r.UpdatedAt = now
			s.students[studentID] = r
			n++
		}
	}
	return n
}

func (s *Store) countActive(courseID id.CourseID) int {
	n := 0
	for _, r := range s.students {
		if r.IsActive() && r.InCourse(courseID) {
			n++
		}
	}
	return n
}

func (s *Store) CourseStatistics(ctx context.Context) ([]enrollment.CourseStatistics, error) {
	var stats []enrollment.CourseStatistics
	s.read(ctx, func() {
		for _, c := range s.courses {
			st := enrollment.CourseStatistics{ID: c.ID, Name: c.Name, Code: c.Code, Capacity: c.Capacity}
			var gpaSum float64
			for _, r := range s.students {
				if !r.InCourse(c.ID) {
					continue
				}
				st.Enrolled++
				gpaSum += r.GPA
				switch r.Status {
				case identity.StatusActive:
					st.Active++
				case identity.StatusGraduated:
					st.Graduated++
				case identity.StatusInactive:
					st.Inactive++
				case identity.StatusSuspended:
					st.Suspended++
				}
				date := r.EnrollmentDate
				if st.FirstEnrollment == nil || date.Before(*st.FirstEnrollment) {
					st.FirstEnrollment = &date
				}
				if st.LatestEnrollment == nil || date.After(*st.LatestEnrollment) {
					st.LatestEnrollment = &date
				}
			}
			if st.Enrolled > 0 {
				st.AverageGPA = gpaSum / float64(st.Enrolled)
			}
			stats = append(stats, st)
		}
	})
	slices.SortFunc(stats, func(a, b enrollment.CourseStatistics) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return stats, nil
}

func (s *Store) FindStudentView(ctx context.Context, studentID id.StudentID) (*enrollment.StudentView, error) {
	var (
		view enrollment.StudentView
		ok   bool
	)
	s.read(ctx, func() {
		var r identity.StudentRecord
		if r, ok = s.students[studentID]; ok {
			view, ok = s.studentView(r)
		}
	})
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &view, nil
}

func (s *Store) ListStudents(ctx context.Context, q enrollment.StudentQuery) ([]enrollment.StudentView, int, error) {
	var views []enrollment.StudentView
	s.read(ctx, func() {
		for _, r := range s.students {
			if q.CourseID != nil && !r.InCourse(*q.CourseID) {
				continue
			}
			if q.Status != nil && r.Status != *q.Status {
				continue
			}
			view, ok := s.studentView(r)
			if !ok {
				continue
			}
			if q.Search != "" && !pstrings.ContainsFold(q.Search, view.FirstName, view.LastName, view.Email, view.StudentNumber) {
				continue
			}
			views = append(views, view)
		}
	})

	courseName := func(v enrollment.StudentView) (string, bool) {
		if v.Course == nil {
			return "", false
		}
		return v.Course.Name, true
	}
	slices.SortFunc(views, func(a, b enrollment.StudentView) int {
		var r int
		switch q.SortBy {
		case enrollment.StudentSortName:
			r = cmp.Compare(a.LastName, b.LastName)
		case enrollment.StudentSortEmail:
			r = cmp.Compare(a.Email, b.Email)
		case enrollment.StudentSortCourseName:
			an, aok := courseName(a)
			bn, bok := courseName(b)
			// students without a course trail in either direction
			if aok != bok {
				if aok {
					return -1
				}
				return 1
			}
			r = cmp.Compare(an, bn)
		default:
			r = a.CreatedAt.Compare(b.CreatedAt)
		}
		if r == 0 {
			r = cmp.Compare(a.ID.String(), b.ID.String())
		}
		if q.SortOrder == enrollment.SortDesc {
			r = -r
		}
		return r
	})
	return window(views, q.PageRequest), len(views), nil
}

func (s *Store) ListStudentsByCourse(ctx context.Context, courseID id.CourseID) ([]enrollment.StudentView, error) {
	var views []enrollment.StudentView
	s.read(ctx, func() {
		for _, r := range s.students {
			if !r.InCourse(courseID) {
				continue
			}
			if view, ok := s.studentView(r); ok {
				views = append(views, view)
			}
		}
	})
	slices.SortFunc(views, func(a, b enrollment.StudentView) int {
		return cmp.Or(cmp.Compare(a.LastName, b.LastName), cmp.Compare(a.FirstName, b.FirstName), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return views, nil
}

// studentView must be called with mu held.
func (s *Store) studentView(r identity.StudentRecord) (enrollment.StudentView, bool) {
	p, ok := s.principals[r.PrincipalID]
	if !ok {
		return enrollment.StudentView{}, false
	}
	var course *enrollment.Course
	if r.HasCourse() {
		if c, found := s.courses[*r.CourseID]; found {
			course = &c
		}
	}
	return enrollment.NewStudentView(p, r, course), true
}

func window[T any](items []T, p enrollment.PageRequest) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := min(start+p.Limit, len(items))
	return items[start:end]
}
