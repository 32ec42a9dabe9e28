package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	identity "registrar/internal/identity/models"
	pgplatform "registrar/internal/platform/postgres"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

const principalColumns = `id, email, password_hash, role, first_name, last_name, created_at, updated_at`

const (
	constraintStudentPrincipal = "uq_students_principal"
	constraintStudentNumber    = "uq_students_number"
)

func (s *Store) CreatePrincipal(ctx context.Context, p *identity.Principal) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO principals (`+principalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(p.ID), p.Email, p.PasswordHash, string(p.Role), p.FirstName, p.LastName, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if pgplatform.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	return nil
}

func (s *Store) UpdatePrincipal(ctx context.Context, p *identity.Principal) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE principals SET first_name = $2, last_name = $3, updated_at = $4
		WHERE id = $1`,
		uuid.UUID(p.ID), p.FirstName, p.LastName, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) DeletePrincipal(ctx context.Context, principalID id.PrincipalID) error {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM principals WHERE id = $1`, uuid.UUID(principalID))
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) FindPrincipalByID(ctx context.Context, principalID id.PrincipalID) (*identity.Principal, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = $1`, uuid.UUID(principalID))
	return scanPrincipal(row)
}

func (s *Store) FindPrincipalByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE LOWER(email) = LOWER($1)`, email)
	return scanPrincipal(row)
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM principals WHERE LOWER(email) = LOWER($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func scanPrincipal(row *sql.Row) (*identity.Principal, error) {
	var (
		p    identity.Principal
		pid  uuid.UUID
		role string
	)
	err := row.Scan(&pid, &p.Email, &p.PasswordHash, &role, &p.FirstName, &p.LastName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	p.ID = id.PrincipalID(pid)
	p.Role = identity.Role(role)
	return &p, nil
}

const studentColumns = `id, principal_id, student_number, course_id, enrollment_date, status, gpa::float8, phone, address, created_at, updated_at`

func (s *Store) CreateStudentRecord(ctx context.Context, r *identity.StudentRecord) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO students (id, principal_id, student_number, course_id, enrollment_date, status, gpa, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(r.ID), uuid.UUID(r.PrincipalID), r.StudentNumber, nullCourse(r.CourseID), r.EnrollmentDate,
		string(r.Status), r.GPA, r.Phone, r.Address, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		switch {
		case pgplatform.IsUniqueViolation(err):
			return studentConflict(err)
		case pgplatform.IsForeignKeyViolation(err):
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert student record: %w", err)
	}
	return nil
}

// studentConflict names the unique constraint a student insert tripped.
func studentConflict(err error) error {
	switch name := pgplatform.ConstraintName(err); name {
	case constraintStudentPrincipal:
		return identity.ErrPrincipalHasRecord
	case constraintStudentNumber:
		return identity.ErrStudentNumberTaken
	default:
		return fmt.Errorf("student record violates %s: %w", name, sentinel.ErrConflict)
	}
}

func (s *Store) UpdateStudentRecord(ctx context.Context, r *identity.StudentRecord) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE students
		SET course_id = $2, status = $3, gpa = $4, phone = $5, address = $6, updated_at = $7
		WHERE id = $1`,
		uuid.UUID(r.ID), nullCourse(r.CourseID), string(r.Status), r.GPA, r.Phone, r.Address, r.UpdatedAt,
	)
	if err != nil {
		if pgplatform.IsForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("update student record: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) DeleteStudentRecord(ctx context.Context, studentID id.StudentID) error {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM students WHERE id = $1`, uuid.UUID(studentID))
	if err != nil {
		return fmt.Errorf("delete student record: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) FindStudentRecord(ctx context.Context, studentID id.StudentID) (*identity.StudentRecord, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, uuid.UUID(studentID))
	return scanStudentRecord(row)
}

func (s *Store) FindStudentByPrincipal(ctx context.Context, principalID id.PrincipalID) (*identity.StudentRecord, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE principal_id = $1`, uuid.UUID(principalID))
	return scanStudentRecord(row)
}

func (s *Store) StudentNumberExists(ctx context.Context, studentNumber string) (bool, error) {
	var exists bool
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM students WHERE student_number = $1)`, studentNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check student number: %w", err)
	}
	return exists, nil
}

func scanStudentRecord(row *sql.Row) (*identity.StudentRecord, error) {
	var (
		r        identity.StudentRecord
		sid, pid uuid.UUID
		courseID uuid.NullUUID
		status   string
	)
	err := row.Scan(&sid, &pid, &r.StudentNumber, &courseID, &r.EnrollmentDate, &status, &r.GPA,
		&r.Phone, &r.Address, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan student record: %w", err)
	}
	r.ID = id.StudentID(sid)
	r.PrincipalID = id.PrincipalID(pid)
	r.Status = identity.Status(status)
	r.CourseID = courseFromNull(courseID)
	return &r, nil
}

// LockCourseCapacity takes a row lock on the course so concurrent seat checks serialize.
func (s *Store) LockCourseCapacity(ctx context.Context, courseID id.CourseID) (int, int, error) {
	course, err := s.LockCourse(ctx, courseID)
	if err != nil {
		return 0, 0, err
	}
	active, err := s.CountActiveInCourse(ctx, courseID)
	if err != nil {
		return 0, 0, err
	}
	return course.Capacity, active, nil
}

func (s *Store) FindCourseSummary(ctx context.Context, courseID id.CourseID) (*identity.CourseSummary, error) {
	var summary identity.CourseSummary
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT name, code, duration FROM courses WHERE id = $1`, uuid.UUID(courseID)).
		Scan(&summary.Name, &summary.Code, &summary.Duration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find course summary: %w", err)
	}
	summary.ID = courseID
	return &summary, nil
}

func nullCourse(courseID *id.CourseID) uuid.NullUUID {
	if courseID == nil || courseID.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*courseID), Valid: true}
}

func courseFromNull(n uuid.NullUUID) *id.CourseID {
	if !n.Valid {
		return nil
	}
	courseID := id.CourseID(n.UUID)
	return &courseID
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
