package memory

import (
	"context"
	"strings"

	enrollment "registrar/internal/enrollment/models"
	identity "registrar/internal/identity/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

func (s *Store) CreatePrincipal(ctx context.Context, p *identity.Principal) error {
	return s.write(ctx, func() error {
		for _, existing := range s.principals {
			if strings.EqualFold(existing.Email, p.Email) {
				return sentinel.ErrConflict
			}
		}
		s.principals[p.ID] = *p
		return nil
	})
}

func (s *Store) UpdatePrincipal(ctx context.Context, p *identity.Principal) error {
	return s.write(ctx, func() error {
		if _, ok := s.principals[p.ID]; !ok {
			return sentinel.ErrNotFound
		}
		s.principals[p.ID] = *p
		return nil
	})
}

// DeletePrincipal also removes the owned student record, mirroring the cascade.
func (s *Store) DeletePrincipal(ctx context.Context, principalID id.PrincipalID) error {
	return s.write(ctx, func() error {
		if _, ok := s.principals[principalID]; !ok {
			return sentinel.ErrNotFound
		}
		delete(s.principals, principalID)
		for studentID, r := range s.students {
			if r.PrincipalID == principalID {
				delete(s.students, studentID)
			}
		}
		return nil
	})
}

func (s *Store) FindPrincipalByID(ctx context.Context, principalID id.PrincipalID) (*identity.Principal, error) {
	var (
		p  identity.Principal
		ok bool
	)
	s.read(ctx, func() { p, ok = s.principals[principalID] })
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindPrincipalByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	var found *identity.Principal
	s.read(ctx, func() {
		for _, p := range s.principals {
			if strings.EqualFold(p.Email, email) {
				found = &p
				return
			}
		}
	})
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.FindPrincipalByEmail(ctx, email)
	return err == nil, nil
}

func (s *Store) CreateStudentRecord(ctx context.Context, r *identity.StudentRecord) error {
	return s.write(ctx, func() error {
		if _, ok := s.principals[r.PrincipalID]; !ok {
			return sentinel.ErrNotFound
		}
		for _, existing := range s.students {
			switch {
			case existing.PrincipalID == r.PrincipalID:
				return identity.ErrPrincipalHasRecord
			case existing.StudentNumber == r.StudentNumber:
				return identity.ErrStudentNumberTaken
			}
		}
		s.students[r.ID] = cloneRecord(*r)
		return nil
	})
}

func (s *Store) UpdateStudentRecord(ctx context.Context, r *identity.StudentRecord) error {
	return s.write(ctx, func() error {
		if _, ok := s.students[r.ID]; !ok {
			return sentinel.ErrNotFound
		}
		if r.HasCourse() {
			if _, ok := s.courses[*r.CourseID]; !ok {
				return sentinel.ErrNotFound
			}
		}
		s.students[r.ID] = cloneRecord(*r)
		return nil
	})
}

func (s *Store) DeleteStudentRecord(ctx context.Context, studentID id.StudentID) error {
	return s.write(ctx, func() error {
		if _, ok := s.students[studentID]; !ok {
			return sentinel.ErrNotFound
		}
		delete(s.students, studentID)
		return nil
	})
}

func (s *Store) FindStudentRecord(ctx context.Context, studentID id.StudentID) (*identity.StudentRecord, error) {
	var (
		r  identity.StudentRecord
		ok bool
	)
	s.read(ctx, func() { r, ok = s.students[studentID] })
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	r = cloneRecord(r)
	return &r, nil
}

func (s *Store) FindStudentByPrincipal(ctx context.Context, principalID id.PrincipalID) (*identity.StudentRecord, error) {
	var found *identity.StudentRecord
	s.read(ctx, func() {
		for _, r := range s.students {
			if r.PrincipalID == principalID {
				r = cloneRecord(r)
				found = &r
				return
			}
		}
	})
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

func (s *Store) StudentNumberExists(ctx context.Context, studentNumber string) (bool, error) {
	exists := false
	s.read(ctx, func() {
		for _, r := range s.students {
			if r.StudentNumber == studentNumber {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

// LockCourseCapacity relies on the transaction lock; every writer is already serialized.
func (s *Store) LockCourseCapacity(ctx context.Context, courseID id.CourseID) (int, int, error) {
	var (
		course enrollment.Course
		active int
		ok     bool
	)
	s.read(ctx, func() {
		if course, ok = s.courses[courseID]; ok {
			active = s.countActive(courseID)
		}
	})
	if !ok {
		return 0, 0, sentinel.ErrNotFound
	}
	return course.Capacity, active, nil
}

func (s *Store) FindCourseSummary(ctx context.Context, courseID id.CourseID) (*identity.CourseSummary, error) {
	var (
		course enrollment.Course
		ok     bool
	)
	s.read(ctx, func() { course, ok = s.courses[courseID] })
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &identity.CourseSummary{ID: course.ID, Name: course.Name, Code: course.Code, Duration: course.Duration}, nil
}

func cloneRecord(r identity.StudentRecord) identity.StudentRecord {
	if r.CourseID != nil {
		courseID := *r.CourseID
		r.CourseID = &courseID
	}
	return r
}
