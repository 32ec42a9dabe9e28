package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registrar/internal/identity/models"
	"registrar/internal/platform/middleware/auth"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the credential store surface used by the auth endpoints.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResult, error)
	Refresh(ctx context.Context, req *models.RefreshRequest) (*models.AuthResult, error)
	Profile(ctx context.Context, principalID id.PrincipalID) (*models.Profile, error)
}

// Handler serves the /auth endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	authenticate func(http.Handler) http.Handler
	rateLimit    func(http.Handler) http.Handler
}

// New builds the handler. rateLimit may be nil.
func New(service Service, logger *slog.Logger, authenticate, rateLimit func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		authenticate: authenticate,
		rateLimit:    rateLimit,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.rateLimit != nil {
				r.Use(h.rateLimit)
			}
			r.Post("/register", h.handleRegister)
			r.Post("/login", h.handleLogin)
			r.Post("/refresh", h.handleRefresh)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Post("/logout", h.handleLogout)
			r.Get("/profile", h.handleProfile)
		})
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	result, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	result, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	result, err := h.service.Refresh(r.Context(), &req)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleLogout acknowledges the request. Tokens are stateless and stay valid until
// they expire; clients discard them.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "logout",
		"principal_id", requestcontext.PrincipalID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, models.LogoutResponse{Message: "logged out successfully"})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.GetCaller(ctx)
	if !ok {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeInternal, "authentication context missing"))
		return
	}
	profile, err := h.service.Profile(ctx, caller.PrincipalID())
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "auth request failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
