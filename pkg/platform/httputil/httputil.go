// Package httputil centralizes JSON response writing and domain error translation.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	dErrors "registrar/pkg/domain-errors"
)

// maxBodyBytes caps request bodies decoded through DecodeJSON.
const maxBodyBytes = 1 << 20

var developmentMode atomic.Bool

// SetDevelopmentMode controls whether internal error causes are echoed to clients.
func SetDevelopmentMode(enabled bool) {
	developmentMode.Store(enabled)
}

// ErrorResponse is the JSON envelope for every error response.
type ErrorResponse struct {
	Error            string         `json:"error"`
	ErrorDescription string         `json:"error_description,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// StatusFor maps a domain error code onto an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeConflict:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeAccountSuspended:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the error envelope. Uncoded errors are treated as internal,
// and internal descriptions are withheld unless development mode is on.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	resp := ErrorResponse{}
	if de, ok := dErrors.As(err); ok {
		code = de.Code
		resp.ErrorDescription = de.Message
		resp.Details = de.Details
	}
	resp.Error = string(code)

	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		resp.ErrorDescription = ""
		resp.Details = nil
		if developmentMode.Load() && err != nil {
			resp.ErrorDescription = err.Error()
		}
	}
	WriteJSON(w, status, resp)
}

// DecodeJSON decodes a bounded request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
