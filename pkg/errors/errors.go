package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Is matches on the error code so callers can compare against the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// StatusCode maps the error code to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound, ErrFileNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidCredentials, ErrInvalidLink:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidTransition:
		return http.StatusConflict
	case ErrLookupUnavailable:
		return http.StatusOK
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrInvalidCredentials
	ErrCorruptIdentity
	ErrFileNotFound
	ErrLookupUnavailable
	ErrInvalidLink
	ErrInvalidTransition
	ErrUnavailable
	ErrTooManyRequests
)

// Sentinels for errors.Is comparisons.
var (
	InvalidCredentialsErr = &AppError{Code: ErrInvalidCredentials}
	CorruptIdentityErr    = &AppError{Code: ErrCorruptIdentity}
	FileNotFoundErr       = &AppError{Code: ErrFileNotFound}
	LookupUnavailableErr  = &AppError{Code: ErrLookupUnavailable}
	InvalidLinkErr        = &AppError{Code: ErrInvalidLink}
	InvalidTransitionErr  = &AppError{Code: ErrInvalidTransition}
	NotFoundErr           = &AppError{Code: ErrNotFound}
	BadRequestErr         = &AppError{Code: ErrBadRequest}
	UnauthorizedErr       = &AppError{Code: ErrUnauthorized}
	ForbiddenErr          = &AppError{Code: ErrForbidden}
)

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

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Code:    ErrInvalidCredentials,
		Message: "Invalid Patient ID or PIN.",
	}
}

func CorruptIdentity(id string) *AppError {
	return &AppError{
		Code:    ErrCorruptIdentity,
		Message: fmt.Sprintf("corrupt patient identity %q", id),
	}
}

func FileNotFound(name string, err error) *AppError {
	return &AppError{
		Code:    ErrFileNotFound,
		Message: fmt.Sprintf("file %q not found", name),
		Err:     err,
	}
}

func LookupUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    ErrLookupUnavailable,
		Message: message,
		Err:     err,
	}
}

func InvalidLink(err error) *AppError {
	return &AppError{
		Code:    ErrInvalidLink,
		Message: "Invalid or expired QR code link.",
		Err:     err,
	}
}

func InvalidTransition(from, event string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("%s is not allowed from %s", event, from),
	}
}

// Unavailable reports a feature that is switched off in configuration.
func Unavailable(message string, err error) *AppError {
	return &AppError{
		Code:    ErrUnavailable,
		Message: message,
		Err:     err,
	}
}

func TooManyRequests() *AppError {
	return &AppError{
		Code:    ErrTooManyRequests,
		Message: "rate limit exceeded",
	}
}

// As is re-exported so callers need not import both packages.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
