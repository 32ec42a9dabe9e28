package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	enrollment "registrar/internal/enrollment/models"
	"registrar/internal/identity/models"
	"registrar/internal/identity/secrets"
	"registrar/internal/storage/memory"
	"registrar/internal/token"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *memory.Store
	tokens  *token.Service
	service *Service
	stats   *countingInvalidator
	ctx     context.Context
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	hasher, err := secrets.NewHasher(bcrypt.MinCost)
	s.Require().NoError(err)
	s.tokens = token.New("test-signing-key-with-enough-bytes", "registrar", "registrar-api")
	s.stats = &countingInvalidator{}
	s.service = New(s.store, s.store, hasher, s.tokens, WithStatsInvalidator(s.stats))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) course(code string, capacity int) *enrollment.Course {
	c, err := enrollment.NewCourse(id.NewCourseID(), code, "Course "+code, 12, capacity, "", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateCourse(s.ctx, c))
	return c
}

func registerRequest(email, number string, courseID *id.CourseID) *models.RegisterRequest {
	req := &models.RegisterRequest{
		Email:         email,
		Password:      "secret123",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		StudentNumber: number,
	}
	if courseID != nil {
		raw := courseID.String()
		req.CourseID = &raw
	}
	return req
}

func (s *ServiceSuite) TestRegister() {
	s.Run("creates principal and record with tokens", func() {
		c := s.course("CS100", 5)
		result, err := s.service.Register(s.ctx, registerRequest("  Ada@Example.com ", "STU10001", &c.ID))
		s.Require().NoError(err)
		s.Equal("ada@example.com", result.User.Email)
		s.Equal(models.RoleStudent, result.User.Role)
		s.NotEmpty(result.AccessToken)
		s.NotEmpty(result.RefreshToken)
		s.Require().NotNil(result.User.StudentID)
		s.Equal(1, s.stats.calls)

		claims, err := s.tokens.VerifyAccess(result.AccessToken)
		s.Require().NoError(err)
		s.Equal("student", claims.Role)

		record, err := s.store.FindStudentByPrincipal(s.ctx, result.User.ID)
		s.Require().NoError(err)
		s.True(record.InCourse(c.ID))
		s.Equal(models.StatusActive, record.Status)
		s.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), record.EnrollmentDate)
	})

	s.Run("duplicate email conflicts", func() {
		_, err := s.service.Register(s.ctx, registerRequest("dup@example.com", "STU20001", nil))
		s.Require().NoError(err)
		_, err = s.service.Register(s.ctx, registerRequest("DUP@example.com", "STU20002", nil))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("duplicate student number conflicts and leaves no principal", func() {
		_, err := s.service.Register(s.ctx, registerRequest("first@example.com", "STU30001", nil))
		s.Require().NoError(err)
		_, err = s.service.Register(s.ctx, registerRequest("second@example.com", "STU30001", nil))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		exists, err := s.store.EmailExists(s.ctx, "second@example.com")
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("unknown course is a validation error", func() {
		missing := id.NewCourseID()
		_, err := s.service.Register(s.ctx, registerRequest("lost@example.com", "STU40001", &missing))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "course not found")
	})

	s.Run("full course conflicts", func() {
		c := s.course("TINY1", 1)
		_, err := s.service.Register(s.ctx, registerRequest("seat1@example.com", "STU50001", &c.ID))
		s.Require().NoError(err)
		_, err = s.service.Register(s.ctx, registerRequest("seat2@example.com", "STU50002", &c.ID))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "course is full")

		exists, err := s.store.EmailExists(s.ctx, "seat2@example.com")
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("invalid payload", func() {
		req := registerRequest("not-an-email", "STU60001", nil)
		req.Password = "123"
		_, err := s.service.Register(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestLogin() {
	registered, err := s.service.Register(s.ctx, registerRequest("login@example.com", "STU70001", nil))
	s.Require().NoError(err)

	s.Run("valid credentials", func() {
		result, err := s.service.Login(s.ctx, &models.LoginRequest{Email: "LOGIN@example.com", Password: "secret123"})
		s.Require().NoError(err)
		s.Equal(registered.User.ID, result.User.ID)
		s.Equal(int64(s.tokens.AccessTTL().Seconds()), result.ExpiresIn)
	})

	s.Run("wrong password and unknown email look the same", func() {
		_, wrong := s.service.Login(s.ctx, &models.LoginRequest{Email: "login@example.com", Password: "nope-nope"})
		_, unknown := s.service.Login(s.ctx, &models.LoginRequest{Email: "ghost@example.com", Password: "nope-nope"})
		s.True(dErrors.HasCode(wrong, dErrors.CodeInvalidCredentials))
		s.True(dErrors.HasCode(unknown, dErrors.CodeInvalidCredentials))
		s.Equal(wrong.Error(), unknown.Error())
	})

	s.Run("suspended student is rejected", func() {
		record, err := s.store.FindStudentByPrincipal(s.ctx, registered.User.ID)
		s.Require().NoError(err)
		record.Status = models.StatusSuspended
		s.Require().NoError(s.store.UpdateStudentRecord(s.ctx, record))

		_, err = s.service.Login(s.ctx, &models.LoginRequest{Email: "login@example.com", Password: "secret123"})
		s.True(dErrors.HasCode(err, dErrors.CodeAccountSuspended))
		s.Contains(err.Error(), "suspended")
	})
}

func (s *ServiceSuite) TestRefresh() {
	registered, err := s.service.Register(s.ctx, registerRequest("refresh@example.com", "STU80001", nil))
	s.Require().NoError(err)

	s.Run("refresh token yields a new pair", func() {
		result, err := s.service.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: registered.RefreshToken})
		s.Require().NoError(err)
		s.Equal(registered.User.ID, result.User.ID)
	})

	s.Run("access token is not accepted", func() {
		_, err := s.service.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: registered.AccessToken})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("deleted principal", func() {
		s.Require().NoError(s.store.DeletePrincipal(s.ctx, registered.User.ID))
		_, err := s.service.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: registered.RefreshToken})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestProfile() {
	c := s.course("PROF1", 10)
	registered, err := s.service.Register(s.ctx, registerRequest("profile@example.com", "STU90001", &c.ID))
	s.Require().NoError(err)

	profile, err := s.service.Profile(s.ctx, registered.User.ID)
	s.Require().NoError(err)
	s.Require().NotNil(profile.StudentInfo)
	s.Equal("STU90001", profile.StudentInfo.StudentNumber)
	s.Require().NotNil(profile.StudentInfo.Course)
	s.Equal("PROF1", profile.StudentInfo.Course.Code)

	_, err = s.service.Profile(s.ctx, id.NewPrincipalID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestResolveCaller() {
	registered, err := s.service.Register(s.ctx, registerRequest("caller@example.com", "STU91001", nil))
	s.Require().NoError(err)

	caller, err := s.service.ResolveCaller(s.ctx, registered.User.ID)
	s.Require().NoError(err)
	student, ok := caller.(models.StudentCaller)
	s.Require().True(ok)
	s.Equal(*registered.User.StudentID, student.StudentID)

	s.Require().NoError(s.service.EnsureAdmin(s.ctx, models.BootstrapAdmin{
		Email: "root@example.com", Password: "admin123", FirstName: "System", LastName: "Admin",
	}))
	admin, err := s.store.FindPrincipalByEmail(s.ctx, "root@example.com")
	s.Require().NoError(err)
	caller, err = s.service.ResolveCaller(s.ctx, admin.ID)
	s.Require().NoError(err)
	s.IsType(models.AdminCaller{}, caller)

	_, err = s.service.ResolveCaller(s.ctx, id.NewPrincipalID())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestEnsureAdmin() {
	admin := models.BootstrapAdmin{Email: "Admin@Example.com", Password: "admin123", FirstName: "System", LastName: "Admin"}

	s.Require().NoError(s.service.EnsureAdmin(s.ctx, admin))
	s.Require().NoError(s.service.EnsureAdmin(s.ctx, admin))

	p, err := s.store.FindPrincipalByEmail(s.ctx, "admin@example.com")
	s.Require().NoError(err)
	s.True(p.IsAdmin())

	result, err := s.service.Login(s.ctx, &models.LoginRequest{Email: "admin@example.com", Password: "admin123"})
	s.Require().NoError(err)
	s.Nil(result.User.StudentID)

	_, err = s.service.Register(s.ctx, registerRequest("student-admin@example.com", "STU92001", nil))
	s.Require().NoError(err)
	err = s.service.EnsureAdmin(s.ctx, models.BootstrapAdmin{
		Email: "student-admin@example.com", Password: "admin123", FirstName: "X", LastName: "Y",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
