package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code so errors.Is(err, &AppError{Code: ErrNotFound}) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrDuplicateCode
	ErrSchedulingConflict
	ErrInvalidTransition
	ErrConsentRequired
	ErrInsufficientStock
	ErrNumberGenerationFailed
	ErrStaleState
	ErrCaseFinalized
	ErrTooManyRequests
	ErrTimeout
)

var httpStatus = map[ErrorCode]int{
	ErrNotFound:               http.StatusNotFound,
	ErrBadRequest:             http.StatusBadRequest,
	ErrUnauthorized:           http.StatusUnauthorized,
	ErrForbidden:              http.StatusForbidden,
	ErrInternal:               http.StatusInternalServerError,
	ErrDuplicateCode:          http.StatusConflict,
	ErrSchedulingConflict:     http.StatusConflict,
	ErrInvalidTransition:      http.StatusConflict,
	ErrConsentRequired:        http.StatusUnprocessableEntity,
	ErrInsufficientStock:      http.StatusUnprocessableEntity,
	ErrNumberGenerationFailed: http.StatusServiceUnavailable,
	ErrStaleState:             http.StatusConflict,
	ErrCaseFinalized:          http.StatusConflict,
	ErrTooManyRequests:        http.StatusTooManyRequests,
	ErrTimeout:                http.StatusGatewayTimeout,
}

// HTTPStatus returns the HTTP status code for the error code.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := httpStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// Validation carries per-field failures from request binding.
func Validation(fields interface{}) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: "validation failed",
		Details: fields,
	}
}

func TooManyRequests() *AppError {
	return &AppError{
		Code:    ErrTooManyRequests,
		Message: "rate limit exceeded",
	}
}

func Timeout() *AppError {
	return &AppError{
		Code:    ErrTimeout,
		Message: "request timed out",
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// Domain errors

func DuplicateCode(code string) *AppError {
	return &AppError{
		Code:    ErrDuplicateCode,
		Message: fmt.Sprintf("theatre code %q already exists for facility", code),
	}
}

// SchedulingConflict carries the bookings that overlap the requested window.
func SchedulingConflict(conflicts interface{}) *AppError {
	return &AppError{
		Code:    ErrSchedulingConflict,
		Message: "theatre is already booked for the requested window",
		Details: conflicts,
	}
}

// TransitionDetails names the state a case is in and the states the operation needs.
type TransitionDetails struct {
	Operation string   `json:"operation"`
	Current   string   `json:"current_status"`
	Required  []string `json:"required_status"`
}

func InvalidTransition(operation, current string, required ...string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot %s a case in status %s (requires one of %v)", operation, current, required),
		Details: TransitionDetails{Operation: operation, Current: current, Required: required},
	}
}

func ConsentRequired() *AppError {
	return &AppError{
		Code:    ErrConsentRequired,
		Message: "consent must be signed before an elective case can start",
	}
}

func InsufficientStock(err error) *AppError {
	return &AppError{
		Code:    ErrInsufficientStock,
		Message: "insufficient stock",
		Err:     err,
	}
}

func NumberGenerationFailed(attempts int, err error) *AppError {
	return &AppError{
		Code:    ErrNumberGenerationFailed,
		Message: fmt.Sprintf("could not allocate a unique case number after %d attempts", attempts),
		Err:     err,
	}
}

func StaleState(resource string) *AppError {
	return &AppError{
		Code:    ErrStaleState,
		Message: fmt.Sprintf("%s was modified concurrently, reload and retry", resource),
	}
}

func CaseFinalized(status string) *AppError {
	return &AppError{
		Code:    ErrCaseFinalized,
		Message: fmt.Sprintf("consumables cannot be changed on a %s case", status),
	}
}

// CodeOf returns the AppError code in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
