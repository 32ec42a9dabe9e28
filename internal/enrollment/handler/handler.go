package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"registrar/internal/enrollment/models"
	identity "registrar/internal/identity/models"
	"registrar/internal/platform/middleware/auth"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

// Service is the enrollment ledger surface used by the course and student endpoints.
type Service interface {
	CreateCourse(ctx context.Context, req *models.CreateCourseRequest) (*models.CourseView, error)
	GetCourse(ctx context.Context, courseID id.CourseID) (*models.CourseView, error)
	ListCourses(ctx context.Context, q models.CourseQuery) (*models.CoursePage, error)
	UpdateCourse(ctx context.Context, courseID id.CourseID, req *models.UpdateCourseRequest) (*models.CourseView, error)
	DeleteCourse(ctx context.Context, courseID id.CourseID, force bool) (*models.DeleteCourseResult, error)
	Statistics(ctx context.Context) ([]models.CourseStatistics, error)

	GetStudent(ctx context.Context, studentID id.StudentID) (*models.StudentView, error)
	ListStudents(ctx context.Context, q models.StudentQuery) (*models.StudentPage, error)
	ListStudentsByCourse(ctx context.Context, courseID id.CourseID) (*models.CourseRoster, error)
	UpdateStudent(ctx context.Context, caller identity.Caller, studentID id.StudentID, req *models.UpdateStudentRequest) (*models.StudentView, error)
	DeleteStudent(ctx context.Context, studentID id.StudentID, force bool) (*models.DeleteStudentResult, error)
}

// Handler serves /courses and /students. Every route sits behind authenticate.
type Handler struct {
	service      Service
	logger       *slog.Logger
	authenticate func(http.Handler) http.Handler
}

func New(service Service, logger *slog.Logger, authenticate func(http.Handler) http.Handler) *Handler {
	return &Handler{service: service, logger: logger, authenticate: authenticate}
}

func (h *Handler) Register(r chi.Router) {
	adminOnly := auth.RequireRole(identity.RoleAdmin)
	anyRole := auth.RequireRole(identity.RoleAdmin, identity.RoleStudent)

	r.Route("/courses", func(r chi.Router) {
		r.Use(h.authenticate)
		r.With(anyRole).Get("/", h.handleListCourses)
		r.With(adminOnly).Get("/statistics", h.handleStatistics)
		r.With(anyRole).Get("/{id}", h.handleGetCourse)
		r.With(adminOnly).Post("/", h.handleCreateCourse)
		r.With(adminOnly).Put("/{id}", h.handleUpdateCourse)
		r.With(adminOnly).Delete("/{id}", h.handleDeleteCourse)
	})

	r.Route("/students", func(r chi.Router) {
		r.Use(h.authenticate)
		r.With(adminOnly).Get("/", h.handleListStudents)
		r.With(adminOnly).Get("/course/{courseId}", h.handleListByCourse)
		r.With(auth.RequireOwnership("id")).Get("/{id}", h.handleGetStudent)
		r.With(auth.RequireOwnership("id")).Put("/{id}", h.handleUpdateStudent)
		r.With(adminOnly).Delete("/{id}", h.handleDeleteStudent)
	})
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q, err := models.ParseCourseQuery(r.URL.Query())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	page, err := h.service.ListCourses(r.Context(), q)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseParam(r, "id")
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	course, err := h.service.GetCourse(r.Context(), courseID)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, course)
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	course, err := h.service.CreateCourse(r.Context(), &req)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, course)
}

func (h *Handler) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseParam(r, "id")
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	var req models.UpdateCourseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	course, err := h.service.UpdateCourse(r.Context(), courseID, &req)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, course)
}

func (h *Handler) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseParam(r, "id")
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	force, err := forceFlag(r)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	result, err := h.service.DeleteCourse(r.Context(), courseID, force)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	q, err := models.ParseStudentQuery(r.URL.Query())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	page, err := h.service.ListStudents(r.Context(), q)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleListByCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseParam(r, "courseId")
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	roster, err := h.service.ListStudentsByCourse(r.Context(), courseID)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roster)
}

func (h *Handler) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := studentParam(r)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	student, err := h.service.GetStudent(r.Context(), studentID)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, student)
}

func (h *Handler) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.GetCaller(ctx)
	if !ok {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeInternal, "authentication context missing"))
		return
	}
	studentID, err := studentParam(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	var req models.UpdateStudentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	student, err := h.service.UpdateStudent(ctx, caller, studentID, &req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, student)
}

func (h *Handler) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := studentParam(r)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	force, err := forceFlag(r)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	result, err := h.service.DeleteStudent(r.Context(), studentID, force)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func courseParam(r *http.Request, name string) (id.CourseID, error) {
	courseID, err := id.ParseCourseID(chi.URLParam(r, name))
	if err != nil {
		return id.CourseID{}, dErrors.New(dErrors.CodeBadRequest, "invalid course id")
	}
	return courseID, nil
}

func studentParam(r *http.Request) (id.StudentID, error) {
	studentID, err := id.ParseStudentID(chi.URLParam(r, "id"))
	if err != nil {
		return id.StudentID{}, dErrors.New(dErrors.CodeBadRequest, "invalid student id")
	}
	return studentID, nil
}

// forceFlag reads ?force. Absent means false.
func forceFlag(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("force"))
	if raw == "" {
		return false, nil
	}
	force, err := strconv.ParseBool(raw)
	if err != nil {
		return false, dErrors.New(dErrors.CodeValidation, "force must be true or false")
	}
	return force, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "enrollment request failed",
			"error", err,
			"principal_id", requestcontext.PrincipalID(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
