package testutil

import (
	"net/http"

	identity "registrar/internal/identity/models"
	"registrar/internal/platform/middleware/auth"
)

// WithCaller attaches caller to the request the way the auth gate does.
func WithCaller(req *http.Request, caller identity.Caller) *http.Request {
	return req.WithContext(auth.WithCaller(req.Context(), caller))
}

// FakeAuth is a stand-in for the auth gate that admits every request as caller.
func FakeAuth(caller identity.Caller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithCaller(r, caller))
		})
	}
}
