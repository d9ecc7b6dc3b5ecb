// Package apperrors provides the structured error kinds surfaced by the play protocol.
package apperrors

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeVerification       Code = "VERIFICATION_FAILED"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidStageAction Code = "INVALID_STAGE_ACTION"
	CodePrizeMismatch      Code = "PRIZE_MISMATCH"
	CodeOutcomeResolution  Code = "OUTCOME_RESOLUTION_FAILED"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
	CodeTokenReplayed      Code = "TOKEN_REPLAYED"
	CodeNotFound           Code = "NOT_FOUND"
)

// HTTPStatus maps a code to the status returned by the HTTP API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeVerification:
		return http.StatusUnauthorized
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInvalidStageAction, CodeTokenReplayed:
		return http.StatusConflict
	case CodePrizeMismatch:
		return http.StatusUnprocessableEntity
	case CodeOutcomeResolution:
		return http.StatusBadGateway
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Fatal reports whether the code indicates a bug rather than a caller mistake.
func (c Code) Fatal() bool {
	return c == CodeInvariantViolation || c == CodeUnknown
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying extra fields for callers.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels usable with errors.Is.
var (
	ErrVerification       = &Error{Code: CodeVerification}
	ErrInvalidInput       = &Error{Code: CodeInvalidInput}
	ErrInvalidStageAction = &Error{Code: CodeInvalidStageAction}
	ErrPrizeMismatch      = &Error{Code: CodePrizeMismatch}
	ErrOutcomeResolution  = &Error{Code: CodeOutcomeResolution}
	ErrInvariantViolation = &Error{Code: CodeInvariantViolation}
	ErrTokenReplayed      = &Error{Code: CodeTokenReplayed}
	ErrNotFound           = &Error{Code: CodeNotFound}
)

// CodeOf extracts the code of the first *Error in the chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
