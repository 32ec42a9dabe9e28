package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/enrollment/models"
	identity "registrar/internal/identity/models"
	"registrar/internal/platform/metrics"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

// CourseStore persists courses and answers derived enrollment counts.
// Lookups return sentinel.ErrNotFound; duplicate codes return sentinel.ErrConflict.
type CourseStore interface {
	CreateCourse(ctx context.Context, c *models.Course) error
	UpdateCourse(ctx context.Context, c *models.Course) error
	DeleteCourse(ctx context.Context, courseID id.CourseID) error
	FindCourse(ctx context.Context, courseID id.CourseID) (*models.Course, error)
	// LockCourse reads the course and holds a row lock until the transaction ends.
	LockCourse(ctx context.Context, courseID id.CourseID) (*models.Course, error)
	FindCourseView(ctx context.Context, courseID id.CourseID) (*models.CourseView, error)
	ListCourses(ctx context.Context, q models.CourseQuery) ([]models.CourseView, int, error)
	CountActiveInCourse(ctx context.Context, courseID id.CourseID) (int, error)
	CountReferencing(ctx context.Context, courseID id.CourseID) (int, error)
	// UnenrollAll nulls every reference to the course and returns how many records changed.
	UnenrollAll(ctx context.Context, courseID id.CourseID) (int, error)
	CourseStatistics(ctx context.Context) ([]models.CourseStatistics, error)
}

// StudentStore persists student records together with their owning principals.
type StudentStore interface {
	FindStudentRecord(ctx context.Context, studentID id.StudentID) (*identity.StudentRecord, error)
	FindPrincipalByID(ctx context.Context, principalID id.PrincipalID) (*identity.Principal, error)
	UpdateStudentRecord(ctx context.Context, r *identity.StudentRecord) error
	UpdatePrincipal(ctx context.Context, p *identity.Principal) error
	DeleteStudentRecord(ctx context.Context, studentID id.StudentID) error
	DeletePrincipal(ctx context.Context, principalID id.PrincipalID) error
	FindStudentView(ctx context.Context, studentID id.StudentID) (*models.StudentView, error)
	ListStudents(ctx context.Context, q models.StudentQuery) ([]models.StudentView, int, error)
	ListStudentsByCourse(ctx context.Context, courseID id.CourseID) ([]models.StudentView, error)
}

type Store interface {
	CourseStore
	StudentStore
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StatsCache caches the statistics report. Implementations may be nil.
// Get reports the cache generation; Set must be given the generation its report was
// computed under so that a write racing an Invalidate is never served.
type StatsCache interface {
	Get(ctx context.Context) ([]models.CourseStatistics, int64, bool, error)
	Set(ctx context.Context, version int64, stats []models.CourseStatistics) error
	Invalidate(ctx context.Context) error
}

// Service is the enrollment ledger: it keeps courses and student records consistent.
type Service struct {
	store   Store
	tx      TxRunner
	cache   StatsCache
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithStatsCache(cache StatsCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func New(store Store, tx TxRunner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     tx,
		logger: slog.Default(),
		tracer: otel.Tracer("registrar/enrollment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) mutated(ctx context.Context, operation string) {
	if s.metrics != nil {
		s.metrics.IncrementLedgerMutation(operation)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate course statistics", "error", err)
		}
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// translate maps store sentinels onto domain errors for the given entity.
func translate(err error, notFound string, action string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}
