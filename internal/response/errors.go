package response

import (
	"errors"
	"net/http"

	"github.com/stemsi/mockmate/internal/exam"
)

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidCode    ErrCode = "INVALID_TEST_CODE"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrTestNotFound ErrCode = "TEST_NOT_FOUND"
	ErrConflict     ErrCode = "CONFLICT"

	// ─── Session ───────────────────────────────────────────────────────
	ErrTestEnded     ErrCode = "TEST_ENDED"
	ErrEntryClosed   ErrCode = "ENTRY_CLOSED"
	ErrWrongPhase    ErrCode = "ACTION_NOT_ALLOWED"
	ErrTimeUp        ErrCode = "TIME_UP"
	ErrSubmitting    ErrCode = "SUBMISSION_IN_PROGRESS"
	ErrReviewOff     ErrCode = "REVIEW_DISABLED"
	ErrUnavailable   ErrCode = "TEMPORARILY_UNAVAILABLE"
	ErrSessionClosed ErrCode = "SESSION_CLOSED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidCode:
		return "Test codes are exactly 4 letters or digits."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrTestNotFound:
		return "No test matches this code. Check the code and try again."
	case ErrConflict:
		return "Resource already exists."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrTestEnded:
		return "This test has already ended."
	case ErrEntryClosed:
		return "The entry window for this test has closed."
	case ErrWrongPhase:
		return "This action is not allowed right now."
	case ErrTimeUp:
		return "Time is up. Your answers are being submitted."
	case ErrSubmitting:
		return "Your answers are being submitted."
	case ErrReviewOff:
		return "Answer review is disabled for this test."
	case ErrUnavailable:
		return "Something went wrong on our side. Please try again."
	case ErrSessionClosed:
		return "This session has been closed."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}

// FromExamError maps a session error to an HTTP status and code.
func FromExamError(err error) (int, ErrCode) {
	var fe *exam.FieldError
	switch {
	case errors.Is(err, exam.ErrClosed):
		return http.StatusGone, ErrSessionClosed
	case errors.Is(err, exam.ErrNotFound):
		return http.StatusNotFound, ErrTestNotFound
	case errors.Is(err, exam.ErrExpired):
		return http.StatusGone, ErrTestEnded
	case errors.Is(err, exam.ErrEntryClosed):
		return http.StatusForbidden, ErrEntryClosed
	case errors.Is(err, exam.ErrTimeUp):
		return http.StatusConflict, ErrTimeUp
	case errors.Is(err, exam.ErrSubmitting):
		return http.StatusConflict, ErrSubmitting
	case errors.Is(err, exam.ErrReviewDisabled):
		return http.StatusForbidden, ErrReviewOff
	case errors.Is(err, exam.ErrWrongPhase):
		return http.StatusConflict, ErrWrongPhase
	case errors.As(err, &fe) && fe.Field == "code":
		return http.StatusBadRequest, ErrInvalidCode
	case errors.Is(err, exam.ErrValidation):
		return http.StatusBadRequest, ErrValidation
	case errors.Is(err, exam.ErrTransient):
		return http.StatusServiceUnavailable, ErrUnavailable
	default:
		return http.StatusInternalServerError, ErrInternal
	}
}
