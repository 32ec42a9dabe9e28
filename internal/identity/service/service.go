package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/identity/models"
	"registrar/internal/platform/metrics"
	"registrar/internal/token"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	pstrings "registrar/pkg/platform/strings"
	"registrar/pkg/platform/validation"
	"registrar/pkg/requestcontext"
)

// Store persists principals and the student records they own. Lookups return
// sentinel.ErrNotFound; inserts violating a uniqueness rule return sentinel.ErrConflict.
type Store interface {
	CreatePrincipal(ctx context.Context, p *models.Principal) error
	FindPrincipalByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	FindPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	CreateStudentRecord(ctx context.Context, r *models.StudentRecord) error
	FindStudentByPrincipal(ctx context.Context, principalID id.PrincipalID) (*models.StudentRecord, error)
	StudentNumberExists(ctx context.Context, studentNumber string) (bool, error)

	// LockCourseCapacity locks the course row for the rest of the transaction and
	// returns its capacity and current active enrollment.
	LockCourseCapacity(ctx context.Context, courseID id.CourseID) (capacity int, active int, err error)
	FindCourseSummary(ctx context.Context, courseID id.CourseID) (*models.CourseSummary, error)
}

// TxRunner runs fn inside one transaction; the store joins it through ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
	VerifyDummy(password string) error
}

type TokenIssuer interface {
	IssuePair(subject token.Subject) (*token.Pair, error)
	VerifyRefresh(tokenString string) (*token.Claims, error)
}

// StatsInvalidator drops cached course statistics after enrollment changes.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service owns credential checks and the registration transaction.
type Service struct {
	store   Store
	tx      TxRunner
	hasher  PasswordHasher
	tokens  TokenIssuer
	stats   StatsInvalidator
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

func WithStatsInvalidator(inv StatsInvalidator) Option {
	return func(s *Service) {
		s.stats = inv
	}
}

func New(store Store, tx TxRunner, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     tx,
		hasher: hasher,
		tokens: tokens,
		logger: slog.Default(),
		tracer: otel.Tracer("registrar/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a student principal and its record in one transaction and
// returns the user view with a fresh token pair.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Register")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	courseID, err := req.Course()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "courseId must be a valid id")
	}

	// Hashing is slow; keep it outside the transaction.
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		principal *models.Principal
		record    *models.StudentRecord
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.store.EmailExists(ctx, req.Email)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
		}
		if exists {
			return dErrors.New(dErrors.CodeConflict, "user already exists with this email")
		}
		exists, err = s.store.StudentNumberExists(ctx, req.StudentNumber)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check student number")
		}
		if exists {
			return dErrors.New(dErrors.CodeConflict, "student number already exists")
		}

		if courseID != nil {
			if err := s.reserveSeat(ctx, *courseID); err != nil {
				return err
			}
		}

		principal, err = models.NewPrincipal(id.NewPrincipalID(), req.Email, hash, models.RoleStudent, req.FirstName, req.LastName, now)
		if err != nil {
			return dErrors.Recode(err, dErrors.CodeValidation)
		}
		if err := s.store.CreatePrincipal(ctx, principal); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "user already exists with this email")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create principal")
		}

		record, err = models.NewStudentRecord(id.NewStudentID(), principal.ID, req.StudentNumber, courseID, deref(req.Phone), deref(req.Address), now)
		if err != nil {
			return dErrors.Recode(err, dErrors.CodeValidation)
		}
		if err := s.store.CreateStudentRecord(ctx, record); err != nil {
			switch {
			case errors.Is(err, models.ErrPrincipalHasRecord):
				return dErrors.Wrap(err, dErrors.CodeConflict, "user already has a student record")
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.Wrap(err, dErrors.CodeConflict, "student number already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create student record")
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("principal_id", principal.ID.String()))
	s.logger.InfoContext(ctx, "student registered",
		"principal_id", principal.ID,
		"student_id", record.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementRegistrations()
	}
	if courseID != nil {
		s.invalidateStats(ctx)
	}

	return s.issue(principal, record)
}

// reserveSeat locks the course row and rejects registration into a full course.
func (s *Service) reserveSeat(ctx context.Context, courseID id.CourseID) error {
	capacity, active, err := s.store.LockCourseCapacity(ctx, courseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "course not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock course")
	}
	if active >= capacity {
		return dErrors.New(dErrors.CodeConflict, "course is full")
	}
	return nil
}

// Login verifies credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Login")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	principal, err := s.store.FindPrincipalByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observeLogin("invalid_credentials")
			return nil, s.hasher.VerifyDummy(req.Password)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	if err := s.hasher.Verify(req.Password, principal.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidCredentials) {
			s.observeLogin("invalid_credentials")
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}

	record, err := s.activeRecord(ctx, principal)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAccountSuspended) {
			s.observeLogin("account_suspended")
		}
		return nil, err
	}

	s.observeLogin("success")
	s.logger.InfoContext(ctx, "login succeeded",
		"principal_id", principal.ID,
		"role", principal.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	return s.issue(principal, record)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, req *models.RefreshRequest) (*models.AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Refresh")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	principalID, err := claims.Principal()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	principal, err := s.store.FindPrincipalByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	record, err := s.activeRecord(ctx, principal)
	if err != nil {
		return nil, err
	}
	return s.issue(principal, record)
}

// activeRecord loads a student's record and rejects non-active accounts.
// Admins and students without a record pass with a nil record.
func (s *Service) activeRecord(ctx context.Context, principal *models.Principal) (*models.StudentRecord, error) {
	if principal.Role != models.RoleStudent {
		return nil, nil
	}
	record, err := s.store.FindStudentByPrincipal(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student record")
	}
	if !record.IsActive() {
		return nil, dErrors.New(dErrors.CodeAccountSuspended, "account is "+record.Status.String())
	}
	return record, nil
}

func (s *Service) issue(principal *models.Principal, record *models.StudentRecord) (*models.AuthResult, error) {
	pair, err := s.tokens.IssuePair(token.Subject{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Role:        principal.Role.String(),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue tokens")
	}
	return models.NewAuthResult(models.NewUserView(principal, record), pair), nil
}

// Profile returns the caller's principal joined with its record and course.
func (s *Service) Profile(ctx context.Context, principalID id.PrincipalID) (*models.Profile, error) {
	principal, err := s.store.FindPrincipalByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}

	profile := &models.Profile{
		ID:        principal.ID,
		Email:     principal.Email,
		FirstName: principal.FirstName,
		LastName:  principal.LastName,
		Role:      principal.Role,
		CreatedAt: principal.CreatedAt,
	}
	if principal.Role != models.RoleStudent {
		return profile, nil
	}

	record, err := s.store.FindStudentByPrincipal(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return profile, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student record")
	}
	info := &models.StudentInfo{
		StudentID:      record.ID,
		StudentNumber:  record.StudentNumber,
		EnrollmentDate: record.EnrollmentDate,
		Status:         record.Status,
		GPA:            record.GPA,
		Phone:          record.Phone,
		Address:        record.Address,
	}
	if record.HasCourse() {
		course, err := s.store.FindCourseSummary(ctx, *record.CourseID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load course")
		}
		info.Course = course
	}
	profile.StudentInfo = info
	return profile, nil
}

// ResolveCaller re-reads the principal behind a verified token. A principal that no
// longer exists is unauthorized.
func (s *Service) ResolveCaller(ctx context.Context, principalID id.PrincipalID) (models.Caller, error) {
	principal, err := s.store.FindPrincipalByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "principal no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve caller")
	}

	var studentID id.StudentID
	if principal.Role == models.RoleStudent {
		record, err := s.store.FindStudentByPrincipal(ctx, principal.ID)
		switch {
		case err == nil:
			studentID = record.ID
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve caller")
		}
	}

	caller, ok := models.NewCaller(*principal, studentID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "unsupported role")
	}
	return caller, nil
}

// EnsureAdmin creates the bootstrap admin unless a principal with that email exists.
func (s *Service) EnsureAdmin(ctx context.Context, admin models.BootstrapAdmin) error {
	admin.Email = pstrings.NormalizeEmail(admin.Email)
	if err := validation.Struct(admin); err != nil {
		return err
	}

	existing, err := s.store.FindPrincipalByEmail(ctx, admin.Email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			return dErrors.New(dErrors.CodeConflict, "bootstrap admin email belongs to a non-admin principal")
		}
		return nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up bootstrap admin")
	}

	hash, err := s.hasher.Hash(admin.Password)
	if err != nil {
		return err
	}
	principal, err := models.NewPrincipal(id.NewPrincipalID(), admin.Email, hash, models.RoleAdmin, admin.FirstName, admin.LastName, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Recode(err, dErrors.CodeValidation)
	}
	if err := s.store.CreatePrincipal(ctx, principal); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create bootstrap admin")
	}
	s.logger.InfoContext(ctx, "bootstrap admin created", "principal_id", principal.ID)
	return nil
}

func (s *Service) observeLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(outcome)
	}
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate course statistics", "error", err)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
