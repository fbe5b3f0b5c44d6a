package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so every error body
// has the same shape:
//
//	{"error": "not_found", "message": "post not found with id abc123"}
//
// The service layer returns apperror values and never an HTTP status; the
// mapping to status codes lives here and only here.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/karma-feed/internal/apperror"
)

// maxBodyBytes caps JSON request bodies. Post content is limited to 10000
// runes, which is at most 40000 bytes of UTF-8 before JSON escaping.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable type, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // set for validation errors
}

// responder carries the logger every handler answers through. Handler types
// embed it so h.writeJSON and h.writeError log with the injected logger.
type responder struct {
	logger *slog.Logger
}

func (h responder) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; logging is all that is left.
			h.logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status.
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrForbidden    → 403
//	ErrNotFound     → 404
//	ErrConflict     → 409 (with Retry-After when the transaction can be retried)
//	anything else   → 500, with no internal detail in the body
func (h responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("unhandled error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
		if appErr.Retry {
			errorType = "retry"
			w.Header().Set("Retry-After", "1")
			h.logger.Warn("retryable storage conflict",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("cause", appErr.Cause()),
			)
		}
	}

	h.writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// UnauthorizedWriter returns the 401 writer the auth middleware installs, so
// rejected requests get the same JSON body as every other error.
func UnauthorizedWriter(logger *slog.Logger) func(w http.ResponseWriter, r *http.Request) {
	h := responder{logger: logger}
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, apperror.Unauthorized("valid authentication required"))
	}
}

// decodeJSON reads a single JSON object into dst and rejects unknown fields
// and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.ValidationFailed("body", "request body too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}

// queryInt parses an optional integer query parameter that must be at least
// floor. A missing parameter returns 0, which services read as "use the
// default".
func queryInt(r *http.Request, name string, floor int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < floor {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer >= %d", name, floor))
	}
	return n, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.ValidationFailed(name, fmt.Sprintf("%s must be true or false", name))
	}
	return b, nil
}
