// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/observability"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Status  string            `json:"status"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// StatusForKind maps an error kind to its HTTP status
func StatusForKind(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindAuthentication:
		return http.StatusUnauthorized
	case auth.KindAuthorization:
		return http.StatusForbidden
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError classifies err and writes the mapped status. Internal errors are
// logged with their cause and the client only sees a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	status := StatusForKind(kind)

	if kind == auth.KindInternal {
		observability.FromContext(r.Context()).WithError(err).Error("Request failed")
		WriteErrorMessage(w, status, "internal server error")
		return
	}

	resp := ErrorResponse{Status: statusText(status), Error: err.Error()}

	var authErr *auth.Error
	if errors.As(err, &authErr) {
		resp.Error = authErr.Message
		if authErr.Field != "" {
			resp.Details = map[string]string{authErr.Field: authErr.Message}
		}
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		resp.Details = make(map[string]string, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			if fieldErr != nil {
				resp.Details[field] = fieldErr.Error()
			}
		}
	}

	_ = WriteJSON(w, status, resp)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Status: statusText(status), Error: message})
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// statusText is "fail" for client errors and "error" for server errors
func statusText(status int) string {
	if status >= http.StatusInternalServerError {
		return "error"
	}
	return "fail"
}
