// Package auth is the access control gate: it authenticates bearer tokens into a
// Caller and enforces role and ownership rules on routes.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	identity "registrar/internal/identity/models"
	"registrar/internal/platform/metrics"
	"registrar/internal/token"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

//go:generate mockgen -source=auth.go -destination=mocks/mocks.go -package=mocks TokenVerifier,CallerResolver

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccess(tokenString string) (*token.Claims, error)
}

// CallerResolver loads the current state of the principal named by a token.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, principalID id.PrincipalID) (identity.Caller, error)
}

type contextKeyCaller struct{}

// WithCaller attaches the authenticated caller to ctx.
func WithCaller(ctx context.Context, caller identity.Caller) context.Context {
	ctx = requestcontext.WithPrincipalID(ctx, caller.PrincipalID())
	return context.WithValue(ctx, contextKeyCaller{}, caller)
}

// GetCaller returns the caller attached by RequireAuth.
func GetCaller(ctx context.Context) (identity.Caller, bool) {
	caller, ok := ctx.Value(contextKeyCaller{}).(identity.Caller)
	return caller, ok
}

// RequireAuth verifies the bearer access token and resolves the caller it names.
func RequireAuth(verifier TokenVerifier, resolver CallerResolver, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, reason string, err error) {
		ctx := r.Context()
		logger.WarnContext(ctx, "unauthorized access",
			"reason", reason,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if m != nil {
			m.IncrementAuthRejection(reason)
		}
		httputil.WriteError(w, err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || strings.TrimSpace(tokenString) == "" {
				reject(w, r, "missing_token",
					dErrors.New(dErrors.CodeUnauthorized, "missing or invalid authorization header"))
				return
			}

			claims, err := verifier.VerifyAccess(strings.TrimSpace(tokenString))
			if err != nil {
				reject(w, r, "invalid_token", err)
				return
			}
			principalID, err := claims.Principal()
			if err != nil {
				reject(w, r, "invalid_token", dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}

			ctx := r.Context()
			caller, err := resolver.ResolveCaller(ctx, principalID)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					reject(w, r, "unknown_principal", err)
					return
				}
				logger.ErrorContext(ctx, "failed to resolve caller",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
		})
	}
}

// RequireRole admits callers whose role is in roles.
func RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := GetCaller(r.Context())
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !slices.Contains(roles, caller.Role()) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnership admits admins, and students whose own record id equals the
// path parameter param.
func RequireOwnership(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := GetCaller(r.Context())
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if err := CanAccessStudent(caller, chi.URLParam(r, param)); err != nil {
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CanAccessStudent reports whether caller may act on the student record rawID.
func CanAccessStudent(caller identity.Caller, rawID string) error {
	switch c := caller.(type) {
	case identity.AdminCaller:
		return nil
	case identity.StudentCaller:
		studentID, err := id.ParseStudentID(rawID)
		if err != nil || !c.Owns(studentID) {
			return dErrors.New(dErrors.CodeForbidden, "you can only access your own student record")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}
}
