package common

import (
	"context"
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetails returns a copy of the error carrying the supplied details payload.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Details = details
	return &clone
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ValidationError builds a 400 AppError for payload problems.
func ValidationError(message string, details any) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: message, HTTPStatus: http.StatusBadRequest, Details: details}
}

// WriteAppError renders err when it is an AppError and reports whether it did so.
func WriteAppError(w http.ResponseWriter, err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusBadRequest
	}
	code := appErr.Code
	if code == "" {
		code = "BAD_REQUEST"
	}
	JSONError(w, status, code, appErr.Message, appErr.Details)
	return true
}

// WriteError renders err with the canonical envelope. AppErrors keep their
// status; cancelled requests map to 503; everything else is a 500.
func WriteError(w http.ResponseWriter, err error) {
	if WriteAppError(w, err) {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		JSONError(w, http.StatusServiceUnavailable, "REQUEST_CANCELLED", "request cancelled", nil)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
