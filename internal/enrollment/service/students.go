package service

import (
	"context"
	"errors"

	"registrar/internal/enrollment/models"
	identity "registrar/internal/identity/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"
)

func (s *Service) GetStudent(ctx context.Context, studentID id.StudentID) (*models.StudentView, error) {
	view, err := s.store.FindStudentView(ctx, studentID)
	if err != nil {
		return nil, translate(err, "student not found", "load student")
	}
	return view, nil
}

func (s *Service) ListStudents(ctx context.Context, q models.StudentQuery) (*models.StudentPage, error) {
	students, total, err := s.store.ListStudents(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list students")
	}
	if students == nil {
		students = []models.StudentView{}
	}
	return &models.StudentPage{Students: students, Pagination: models.NewPagination(q.PageRequest, total)}, nil
}

func (s *Service) ListStudentsByCourse(ctx context.Context, courseID id.CourseID) (*models.CourseRoster, error) {
	course, err := s.store.FindCourseView(ctx, courseID)
	if err != nil {
		return nil, translate(err, "course not found", "load course")
	}
	students, err := s.store.ListStudentsByCourse(ctx, courseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list course students")
	}
	if students == nil {
		students = []models.StudentView{}
	}
	return &models.CourseRoster{Course: *course, Students: students}, nil
}

// UpdateStudent applies a partial update across the principal and its record in one
// transaction. Moving an active record into a course, or reactivating a record that
// references one, takes a seat under the course row lock.
func (s *Service) UpdateStudent(ctx context.Context, caller identity.Caller, studentID id.StudentID, req *models.UpdateStudentRequest) (result *models.StudentView, err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.UpdateStudent")
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	targetStatus, err := req.TargetStatus()
	if err != nil {
		return nil, err
	}
	if targetStatus != nil {
		switch caller.(type) {
		case identity.AdminCaller:
		default:
			return nil, dErrors.New(dErrors.CodeForbidden, "only administrators can change student status")
		}
	}
	targetCourse, err := req.CourseID.Parse()
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		record, err := s.store.FindStudentRecord(ctx, studentID)
		if err != nil {
			return translate(err, "student not found", "load student")
		}

		wasSeated := record.HasCourse() && record.IsActive()
		if req.CourseID.Set {
			record.CourseID = targetCourse
		}
		if targetStatus != nil {
			record.Status = *targetStatus
		}
		if req.Phone != nil {
			record.Phone = *req.Phone
		}
		if req.Address != nil {
			record.Address = *req.Address
		}
		record.UpdatedAt = now

		if record.HasCourse() {
			if err := s.seat(ctx, record, wasSeated, req.CourseID.Set); err != nil {
				return err
			}
		}

		if req.FirstName != nil || req.LastName != nil {
			principal, err := s.store.FindPrincipalByID(ctx, record.PrincipalID)
			if err != nil {
				return translate(err, "student not found", "load principal")
			}
			principal.Rename(req.FirstName, req.LastName, now)
			if err := s.store.UpdatePrincipal(ctx, principal); err != nil {
				return translate(err, "student not found", "update principal")
			}
		}
		if err := s.store.UpdateStudentRecord(ctx, record); err != nil {
			return translate(err, "student not found", "update student")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mutated(ctx, "update_student")
	return s.GetStudent(ctx, studentID)
}

// seat verifies the record's course exists and, when the record takes a new seat,
// that the course has room. The course row stays locked until commit.
func (s *Service) seat(ctx context.Context, record *identity.StudentRecord, wasSeated, courseChanged bool) error {
	courseID := *record.CourseID
	course, err := s.store.LockCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "course not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock course")
	}
	if !record.IsActive() {
		return nil
	}
	// An active record that stays in the same course already holds its seat.
	if wasSeated && !courseChanged {
		return nil
	}

	active, err := s.store.CountActiveInCourse(ctx, courseID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count enrollment")
	}
	// The stored row may still be counted when it is re-saved into the same course.
	current, err := s.store.FindStudentRecord(ctx, record.ID)
	if err != nil {
		return translate(err, "student not found", "load student")
	}
	if current.IsActive() && current.InCourse(courseID) {
		active--
	}
	if !course.HasRoom(active) {
		return dErrors.New(dErrors.CodeConflict, "course is full")
	}
	return nil
}

// DeleteStudent removes a student record and its owning principal. A record that
// references a course needs force.
func (s *Service) DeleteStudent(ctx context.Context, studentID id.StudentID, force bool) (result *models.DeleteStudentResult, err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.DeleteStudent")
	defer func() { endSpan(span, err) }()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		record, err := s.store.FindStudentRecord(ctx, studentID)
		if err != nil {
			return translate(err, "student not found", "load student")
		}
		if record.HasCourse() && !force {
			return dErrors.New(dErrors.CodeConflict, "student is enrolled in a course; use force=true to delete anyway")
		}
		if err := s.store.DeleteStudentRecord(ctx, studentID); err != nil {
			return translate(err, "student not found", "delete student")
		}
		if err := s.store.DeletePrincipal(ctx, record.PrincipalID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete principal")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "student deleted", "student_id", studentID, "forced", force)
	s.mutated(ctx, "delete_student")
	return &models.DeleteStudentResult{StudentID: studentID}, nil
}
