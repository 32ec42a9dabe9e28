package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	enrollment "registrar/internal/enrollment/models"
	identity "registrar/internal/identity/models"
	pgplatform "registrar/internal/platform/postgres"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	pstrings "registrar/pkg/platform/strings"
)

const courseColumns = `id, code, name, duration, capacity, description, created_at, updated_at`

var courseSortColumns = map[enrollment.CourseSort]string{
	enrollment.CourseSortName:      "name",
	enrollment.CourseSortCode:      "code",
	enrollment.CourseSortDuration:  "duration",
	enrollment.CourseSortCreatedAt: "created_at",
}

var studentSortColumns = map[enrollment.StudentSort]string{
	enrollment.StudentSortName:       "p.last_name",
	enrollment.StudentSortEmail:      "p.email",
	enrollment.StudentSortCreatedAt:  "s.created_at",
	enrollment.StudentSortCourseName: "c.name",
}

func (s *Store) CreateCourse(ctx context.Context, c *enrollment.Course) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(c.ID), c.Code, c.Name, c.Duration, c.Capacity, c.Description, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if pgplatform.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

func (s *Store) UpdateCourse(ctx context.Context, c *enrollment.Course) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE courses
		SET code = $2, name = $3, duration = $4, capacity = $5, description = $6, updated_at = $7
		WHERE id = $1`,
		uuid.UUID(c.ID), c.Code, c.Name, c.Duration, c.Capacity, c.Description, c.UpdatedAt,
	)
	if err != nil {
		if pgplatform.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update course: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) DeleteCourse(ctx context.Context, courseID id.CourseID) error {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, uuid.UUID(courseID))
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) FindCourse(ctx context.Context, courseID id.CourseID) (*enrollment.Course, error) {
	return s.findCourse(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, courseID)
}

func (s *Store) LockCourse(ctx context.Context, courseID id.CourseID) (*enrollment.Course, error) {
	return s.findCourse(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1 FOR UPDATE`, courseID)
}

func (s *Store) findCourse(ctx context.Context, query string, courseID id.CourseID) (*enrollment.Course, error) {
	c, err := scanCourse(s.exec(ctx).QueryRowContext(ctx, query, uuid.UUID(courseID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(row scanner) (*enrollment.Course, error) {
	var (
		c   enrollment.Course
		cid uuid.UUID
	)
	if err := row.Scan(&cid, &c.Code, &c.Name, &c.Duration, &c.Capacity, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = id.CourseID(cid)
	return &c, nil
}

func (s *Store) FindCourseView(ctx context.Context, courseID id.CourseID) (*enrollment.CourseView, error) {
	course, err := s.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	active, err := s.CountActiveInCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	view := enrollment.NewCourseView(*course, active)
	return &view, nil
}

func (s *Store) ListCourses(ctx context.Context, q enrollment.CourseQuery) ([]enrollment.CourseView, int, error) {
	where := sq.And{}
	if pattern := pstrings.LikePattern(q.Search); pattern != "" {
		where = append(where, sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"code": pattern},
			sq.ILike{"description": pattern},
		})
	}
	if q.MinDuration != nil {
		where = append(where, sq.GtOrEq{"duration": *q.MinDuration})
	}
	if q.MaxDuration != nil {
		where = append(where, sq.LtOrEq{"duration": *q.MaxDuration})
	}

	countQuery, countArgs, err := s.sb.Select("COUNT(*)").From("courses").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build course count query: %w", err)
	}
	pageQuery, pageArgs, err := s.sb.Select(courseColumns).From("courses").Where(where).
		OrderBy(courseSortColumns[q.SortBy]+" "+string(q.SortOrder), "id "+string(q.SortOrder)).
		Limit(uint64(q.Limit)).Offset(uint64(q.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build course page query: %w", err)
	}

	var (
		total   int
		courses []enrollment.Course
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.QueryRowContext(gctx, countQuery, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("count courses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, pageQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("list courses: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCourse(rows)
			if err != nil {
				return fmt.Errorf("scan course: %w", err)
			}
			courses = append(courses, *c)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID.String()
	}
	active, err := s.activeCounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	views := make([]enrollment.CourseView, len(courses))
	for i, c := range courses {
		views[i] = enrollment.NewCourseView(c, active[c.ID])
	}
	return views, total, nil
}

// activeCounts returns the active enrollment per course for a page of course ids.
func (s *Store) activeCounts(ctx context.Context, ids []string) (map[id.CourseID]int, error) {
	counts := make(map[id.CourseID]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT course_id, COUNT(*)
		FROM students
		WHERE status = 'active' AND course_id = ANY($1::uuid[])
		GROUP BY course_id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("count active enrollment: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid uuid.UUID
			n   int
		)
		if err := rows.Scan(&cid, &n); err != nil {
			return nil, fmt.Errorf("scan active enrollment: %w", err)
		}
		counts[id.CourseID(cid)] = n
	}
	return counts, rows.Err()
}

func (s *Store) CountActiveInCourse(ctx context.Context, courseID id.CourseID) (int, error) {
	var n int
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students WHERE course_id = $1 AND status = 'active'`, uuid.UUID(courseID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active enrollment: %w", err)
	}
	return n, nil
}

func (s *Store) CountReferencing(ctx context.Context, courseID id.CourseID) (int, error) {
	var n int
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students WHERE course_id = $1`, uuid.UUID(courseID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referencing students: %w", err)
	}
	return n, nil
}

func (s *Store) UnenrollAll(ctx context.Context, courseID id.CourseID) (int, error) {
	res, err := s.exec(ctx).ExecContext(ctx,
		`UPDATE students SET course_id = NULL, updated_at = NOW() WHERE course_id = $1`, uuid.UUID(courseID))
	if err != nil {
		return 0, fmt.Errorf("unenroll students: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *Store) CourseStatistics(ctx context.Context) ([]enrollment.CourseStatistics, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT
			c.id, c.name, c.code, c.capacity,
			COUNT(s.id),
			COUNT(s.id) FILTER (WHERE s.status = 'active'),
			COUNT(s.id) FILTER (WHERE s.status = 'graduated'),
			COUNT(s.id) FILTER (WHERE s.status = 'inactive'),
			COUNT(s.id) FILTER (WHERE s.status = 'suspended'),
			COALESCE(AVG(s.gpa), 0)::float8,
			MIN(s.enrollment_date),
			MAX(s.enrollment_date)
		FROM courses c
		LEFT JOIN students s ON s.course_id = c.id
		GROUP BY c.id, c.name, c.code, c.capacity
		ORDER BY c.name, c.id`)
	if err != nil {
		return nil, fmt.Errorf("course statistics: %w", err)
	}
	defer rows.Close()

	var stats []enrollment.CourseStatistics
	for rows.Next() {
		var (
			st            enrollment.CourseStatistics
			cid           uuid.UUID
			first, latest sql.NullTime
		)
		if err := rows.Scan(&cid, &st.Name, &st.Code, &st.Capacity, &st.Enrolled, &st.Active, &st.Graduated,
			&st.Inactive, &st.Suspended, &st.AverageGPA, &first, &latest); err != nil {
			return nil, fmt.Errorf("scan course statistics: %w", err)
		}
		st.ID = id.CourseID(cid)
		if first.Valid {
			st.FirstEnrollment = &first.Time
		}
		if latest.Valid {
			st.LatestEnrollment = &latest.Time
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

const studentViewColumns = `s.id, p.id, s.student_number, p.first_name, p.last_name, p.email,
	s.enrollment_date, s.status, s.gpa::float8, s.phone, s.address, s.created_at, s.updated_at,
	c.id, c.name, c.code, c.duration`

func (s *Store) studentViewQuery() sq.SelectBuilder {
	return s.sb.Select(studentViewColumns).
		From("students s").
		Join("principals p ON p.id = s.principal_id").
		LeftJoin("courses c ON c.id = s.course_id")
}

func scanStudentView(row scanner) (*enrollment.StudentView, error) {
	var (
		v          enrollment.StudentView
		sid, pid   uuid.UUID
		status     string
		courseID   uuid.NullUUID
		courseName sql.NullString
		courseCode sql.NullString
		duration   sql.NullInt64
	)
	err := row.Scan(&sid, &pid, &v.StudentNumber, &v.FirstName, &v.LastName, &v.Email,
		&v.EnrollmentDate, &status, &v.GPA, &v.Phone, &v.Address, &v.CreatedAt, &v.UpdatedAt,
		&courseID, &courseName, &courseCode, &duration)
	if err != nil {
		return nil, err
	}
	v.ID = id.StudentID(sid)
	v.PrincipalID = id.PrincipalID(pid)
	v.Status = identity.Status(status)
	if courseID.Valid {
		v.Course = &identity.CourseSummary{
			ID:       id.CourseID(courseID.UUID),
			Name:     courseName.String,
			Code:     courseCode.String,
			Duration: int(duration.Int64),
		}
	}
	return &v, nil
}

func (s *Store) FindStudentView(ctx context.Context, studentID id.StudentID) (*enrollment.StudentView, error) {
	query, args, err := s.studentViewQuery().Where(sq.Eq{"s.id": uuid.UUID(studentID)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build student query: %w", err)
	}
	view, err := scanStudentView(s.exec(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return view, nil
}

func (s *Store) ListStudents(ctx context.Context, q enrollment.StudentQuery) ([]enrollment.StudentView, int, error) {
	where := sq.And{}
	if pattern := pstrings.LikePattern(q.Search); pattern != "" {
		where = append(where, sq.Or{
			sq.ILike{"p.first_name": pattern},
			sq.ILike{"p.last_name": pattern},
			sq.ILike{"p.email": pattern},
			sq.ILike{"s.student_number": pattern},
		})
	}
	if q.CourseID != nil {
		where = append(where, sq.Eq{"s.course_id": uuid.UUID(*q.CourseID)})
	}
	if q.Status != nil {
		where = append(where, sq.Eq{"s.status": string(*q.Status)})
	}

	countQuery, countArgs, err := s.sb.Select("COUNT(*)").
		From("students s").
		Join("principals p ON p.id = s.principal_id").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build student count query: %w", err)
	}
	pageQuery, pageArgs, err := s.studentViewQuery().Where(where).
		OrderBy(studentSortColumns[q.SortBy]+" "+string(q.SortOrder)+" NULLS LAST", "s.id "+string(q.SortOrder)).
		Limit(uint64(q.Limit)).Offset(uint64(q.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build student page query: %w", err)
	}

	var (
		total    int
		students []enrollment.StudentView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.QueryRowContext(gctx, countQuery, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("count students: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		students, err = s.queryStudentViews(gctx, s.db, pageQuery, pageArgs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

func (s *Store) ListStudentsByCourse(ctx context.Context, courseID id.CourseID) ([]enrollment.StudentView, error) {
	query, args, err := s.studentViewQuery().
		Where(sq.Eq{"s.course_id": uuid.UUID(courseID)}).
		OrderBy("p.last_name", "p.first_name", "s.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build course roster query: %w", err)
	}
	return s.queryStudentViews(ctx, s.exec(ctx), query, args)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) queryStudentViews(ctx context.Context, q querier, query string, args []any) ([]enrollment.StudentView, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var views []enrollment.StudentView
	for rows.Next() {
		v, err := scanStudentView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}
