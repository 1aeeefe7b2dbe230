package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Auth
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Validation
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// Resource
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeNeedsPairing ErrorCode = "NEEDS_PAIRING"
	ErrCodeConflict     ErrorCode = "CONFLICT"

	// Image pipeline
	ErrCodeConversion ErrorCode = "CONVERSION_ERROR"
	ErrCodeProcessing ErrorCode = "PROCESSING_ERROR"

	// Partial outcomes
	ErrCodePartialBatch  ErrorCode = "PARTIAL_BATCH"
	ErrCodePartialDelete ErrorCode = "PARTIAL_DELETE"

	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// Internal
	ErrCodeBackend  ErrorCode = "BACKEND_ERROR"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is reports a match on code, so errors.Is(err, ErrNeedsPairing) works for any
// AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && t.Message == ""
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

// Sentinels for errors.Is matching by code.
var (
	ErrNotFound     = &AppError{Code: ErrCodeNotFound}
	ErrNeedsPairing = &AppError{Code: ErrCodeNeedsPairing}
	ErrConflict     = &AppError{Code: ErrCodeConflict}
	ErrValidation   = &AppError{Code: ErrCodeValidation}
)

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("%s is required", field))
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func NeedsPairing() *AppError {
	return New(ErrCodeNeedsPairing, "User has not created or joined a pair")
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func Conversion(cause error) *AppError {
	return Wrap(ErrCodeConversion, "Image format conversion failed", cause)
}

func Processing(cause error) *AppError {
	return Wrap(ErrCodeProcessing, "Image processing failed", cause)
}

func PartialBatch(succeeded, total int) *AppError {
	return New(ErrCodePartialBatch, fmt.Sprintf("%d of %d files uploaded", succeeded, total))
}

func PartialDelete(photoID string, cause error) *AppError {
	return Wrap(ErrCodePartialDelete,
		fmt.Sprintf("Photo %s removed from storage but its record could not be deleted", photoID), cause)
}

func RateLimited() *AppError {
	return New(ErrCodeRateLimited, "Too many requests")
}

func Backend(operation string, cause error) *AppError {
	return Wrap(ErrCodeBackend, fmt.Sprintf("Backend error: %s", operation), cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus maps an error code to the status a handler should answer with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeNeedsPairing:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeConversion, ErrCodeProcessing:
		return http.StatusUnprocessableEntity
	case ErrCodePartialBatch:
		return http.StatusMultiStatus
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeBackend, ErrCodePartialDelete:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
