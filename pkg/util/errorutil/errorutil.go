package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced in API responses.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotAuthorized       = "NOT_AUTHORIZED"
	CodeInvalidReference    = "INVALID_REFERENCE"
	CodeDuplicateOpenTicket = "DUPLICATE_OPEN_TICKET"
	CodeAlreadyOnDuty       = "ALREADY_ON_DUTY"
	CodeIntervalTooSmall    = "INTERVAL_TOO_SMALL"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches DomainErrors by code so callers can compare against the constructors.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewNotAuthorized reports that the caller lacks permission for an action.
func NewNotAuthorized(message string) error {
	return NewDomainError(CodeNotAuthorized, message, http.StatusForbidden, nil)
}

func NewInvalidReference(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidReference, message, http.StatusBadRequest, details)
}

func NewDuplicateOpenTicket(userID int64) error {
	return NewDomainError(CodeDuplicateOpenTicket,
		"user already has an open helpdesk ticket",
		http.StatusConflict,
		map[string]any{"user_id": userID})
}

func NewAlreadyOnDuty(username string) error {
	return NewDomainError(CodeAlreadyOnDuty,
		fmt.Sprintf("%s is already clocked on at the helpdesk", username),
		http.StatusConflict, nil)
}

// NewIntervalTooSmall carries the smallest interval, in seconds, the request would accept.
func NewIntervalTooSmall(minSeconds float64) error {
	return NewDomainError(CodeIntervalTooSmall,
		fmt.Sprintf("Bad interval - must be greater than %.2f seconds = %d minutes = %d hours = %d days",
			minSeconds,
			int64(minSeconds/60),
			int64(minSeconds/60/60),
			int64(minSeconds/60/60/24)),
		http.StatusBadRequest,
		map[string]any{"min_interval_seconds": minSeconds})
}

func NewRateLimited(retryAfterSeconds int) error {
	return NewDomainError(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests,
		map[string]any{"retry_after": retryAfterSeconds})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
