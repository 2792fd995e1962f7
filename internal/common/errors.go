package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline errors
var (
	ErrConditioningDegraded     = errors.New("conditioning degraded")
	ErrRecognitionUnavailable   = errors.New("recognition unavailable")
	ErrRecognitionTimeout       = errors.New("recognition timeout")
	ErrExtractionFailed         = errors.New("extraction failed")
	ErrVerificationInputInvalid = errors.New("verification input invalid")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ExtractionFailedError carries the reason string surfaced to callers. It
// matches both ErrExtractionFailed and the underlying recognition error.
type ExtractionFailedError struct {
	Reason string
	Cause  error
}

func (e *ExtractionFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Cause)
	}
	return "extraction failed: " + e.Reason
}

func (e *ExtractionFailedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrExtractionFailed}
	}
	return []error{ErrExtractionFailed, e.Cause}
}

func NewExtractionFailed(reason string, cause error) error {
	return &ExtractionFailedError{Reason: reason, Cause: cause}
}

// ClassifyRecognitionError folds context errors into the recognition sentinels.
// Errors that already match a sentinel pass through unchanged.
func ClassifyRecognitionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRecognitionTimeout), errors.Is(err, ErrRecognitionUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrRecognitionTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrRecognitionUnavailable, err)
	}
}

// HTTPStatus maps an error onto the API boundary.
func HTTPStatus(err error) int {
	var ve ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRecognitionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrRecognitionUnavailable), errors.Is(err, ErrExtractionFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation), errors.As(err, &ve):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
