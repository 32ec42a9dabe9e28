package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"registrar/internal/enrollment/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"
)

func (s *Service) CreateCourse(ctx context.Context, req *models.CreateCourseRequest) (result *models.CourseView, err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.CreateCourse")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	capacity := 0
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	description := ""
	if req.Description != nil {
		description = *req.Description
	}

	course, err := models.NewCourse(id.NewCourseID(), req.Code, req.Name, req.Duration, capacity, description, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Recode(err, dErrors.CodeValidation)
	}
	if err := s.store.CreateCourse(ctx, course); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "course code already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create course")
	}

	s.logger.InfoContext(ctx, "course created", "course_id", course.ID, "code", course.Code)
	s.mutated(ctx, "create_course")
	view := models.NewCourseView(*course, 0)
	return &view, nil
}

func (s *Service) GetCourse(ctx context.Context, courseID id.CourseID) (*models.CourseView, error) {
	view, err := s.store.FindCourseView(ctx, courseID)
	if err != nil {
		return nil, translate(err, "course not found", "load course")
	}
	return view, nil
}

func (s *Service) ListCourses(ctx context.Context, q models.CourseQuery) (*models.CoursePage, error) {
	courses, total, err := s.store.ListCourses(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list courses")
	}
	if courses == nil {
		courses = []models.CourseView{}
	}
	return &models.CoursePage{Courses: courses, Pagination: models.NewPagination(q.PageRequest, total)}, nil
}

// UpdateCourse applies a partial update. Capacity may not drop below the current
// active enrollment.
func (s *Service) UpdateCourse(ctx context.Context, courseID id.CourseID, req *models.UpdateCourseRequest) (result *models.CourseView, err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.UpdateCourse")
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var view models.CourseView
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		course, err := s.store.LockCourse(ctx, courseID)
		if err != nil {
			return translate(err, "course not found", "load course")
		}
		active, err := s.store.CountActiveInCourse(ctx, courseID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count enrollment")
		}
		if err := course.Apply(req, requestcontext.Now(ctx)); err != nil {
			return dErrors.Recode(err, dErrors.CodeValidation)
		}
		if course.Capacity < active {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("maxStudents cannot be less than the current enrollment of %d", active)).
				WithDetails(map[string]any{"enrolled_students": active})
		}
		if err := s.store.UpdateCourse(ctx, course); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "course code already exists")
			}
			return translate(err, "course not found", "update course")
		}
		view = models.NewCourseView(*course, active)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mutated(ctx, "update_course")
	return &view, nil
}

// DeleteCourse removes a course. Referenced courses need force, which unenrolls every
// referencing student in the same transaction.
func (s *Service) DeleteCourse(ctx context.Context, courseID id.CourseID, force bool) (result *models.DeleteCourseResult, err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.DeleteCourse")
	span.SetAttributes(attribute.Bool("force", force))
	defer func() { endSpan(span, err) }()

	var unenrolled int
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.LockCourse(ctx, courseID); err != nil {
			return translate(err, "course not found", "load course")
		}
		referencing, err := s.store.CountReferencing(ctx, courseID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count enrolled students")
		}
		if referencing > 0 && !force {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("course has %d enrolled students; use force=true to delete anyway", referencing)).
				WithDetails(map[string]any{"enrolled_students": referencing})
		}
		if referencing > 0 {
			if unenrolled, err = s.store.UnenrollAll(ctx, courseID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unenroll students")
			}
		}
		if err := s.store.DeleteCourse(ctx, courseID); err != nil {
			return translate(err, "course not found", "delete course")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "course deleted",
		"course_id", courseID,
		"forced", force,
		"unenrolled_students", unenrolled,
	)
	if unenrolled > 0 && s.metrics != nil {
		s.metrics.IncrementForcedCourseDelete()
	}
	s.mutated(ctx, "delete_course")
	return &models.DeleteCourseResult{CourseID: courseID, UnenrolledStudents: unenrolled}, nil
}

// Statistics reports per-course aggregates, served from the cache when one is configured.
func (s *Service) Statistics(ctx context.Context) ([]models.CourseStatistics, error) {
	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		stats, v, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "course statistics cache read failed", "error", err)
		}
		if s.metrics != nil {
			s.metrics.ObserveStatsCache(ok)
		}
		if ok {
			return stats, nil
		}
		version, cacheable = v, err == nil
	}

	stats, err := s.store.CourseStatistics(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute course statistics")
	}
	if stats == nil {
		stats = []models.CourseStatistics{}
	}
	for i := range stats {
		stats[i].Finalize()
	}

	if cacheable {
		if err := s.cache.Set(ctx, version, stats); err != nil {
			s.logger.WarnContext(ctx, "course statistics cache write failed", "error", err)
		}
	}
	return stats, nil
}
