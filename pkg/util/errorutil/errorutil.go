package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

// Error codes rendered in the "code" field of error responses.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeValidation      = "VALIDATION_FAILED"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyClaimed  = "ALREADY_CLAIMED"
	CodeNotClaimed      = "NOT_CLAIMED"
	CodeAlreadyResolved = "ALREADY_RESOLVED"
	CodeNotResolved     = "NOT_AWAITING_FEEDBACK"
	CodeFeedbackGiven   = "FEEDBACK_ALREADY_SUBMITTED"
	CodeUnavailable     = "DEPENDENCY_UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
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

func NewUnauthenticated(message string, details map[string]any) error {
	return NewDomainError(CodeUnauthenticated, message, http.StatusUnauthorized, details)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewInsufficientPrivilege reports the required and actual privilege levels.
func NewInsufficientPrivilege(required, actual int) error {
	return NewDomainError(CodeForbidden,
		fmt.Sprintf("You need organizer permissions (level %d+) to access this service. Your current level: %d", required, actual),
		http.StatusForbidden,
		map[string]any{"required_level": required, "current_level": actual})
}

// NewInsufficientRole reports the roles a route accepts and the caller's role.
func NewInsufficientRole(allowed []string, actual string) error {
	return NewDomainError(CodeForbidden,
		fmt.Sprintf("This service requires one of the roles: %s. Your current role: %s", strings.Join(allowed, ", "), actual),
		http.StatusForbidden,
		map[string]any{"required_roles": allowed, "current_role": actual})
}

func NewAlreadyClaimed(ticketID int64) error {
	return NewDomainError(CodeAlreadyClaimed, "Ticket already claimed", http.StatusBadRequest, map[string]any{"ticket_id": ticketID})
}

func NewNotClaimed(ticketID int64) error {
	return NewDomainError(CodeNotClaimed, "Ticket is not claimed", http.StatusBadRequest, map[string]any{"ticket_id": ticketID})
}

func NewAlreadyResolved(ticketID int64) error {
	return NewDomainError(CodeAlreadyResolved, "Ticket already resolved", http.StatusBadRequest, map[string]any{"ticket_id": ticketID})
}

func NewNotResolved(ticketID int64) error {
	return NewDomainError(CodeNotResolved, "Ticket is not awaiting feedback", http.StatusBadRequest, map[string]any{"ticket_id": ticketID})
}

func NewFeedbackGiven(ticketID int64) error {
	return NewDomainError(CodeFeedbackGiven, "Feedback already submitted", http.StatusBadRequest, map[string]any{"ticket_id": ticketID})
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
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return NewDomainError(codeForStatus(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	default:
		if status >= 500 {
			return CodeInternal
		}
		return http.StatusText(status)
	}
}
