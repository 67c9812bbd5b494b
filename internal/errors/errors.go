package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an application-level error with a stable code and optional cause.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError.
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes
const (
	ErrCodeValidation     = "VALIDATION_FAILED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeDenied         = "OPERATION_DENIED"
	ErrCodeUpstream       = "UPSTREAM_FAILED"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeTurnInProgress = "TURN_IN_PROGRESS"
	ErrCodeInternal       = "INTERNAL"
)

// HasCode reports whether err or any error in its chain is an AppError with
// the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code returns the AppError code of err, or ErrCodeInternal when err carries
// no code.
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
