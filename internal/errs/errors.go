// Package errs carries the coded error taxonomy used across the moderation
// service. Every error that crosses a package boundary is one of these codes
// so the HTTP layer can map duplicate / not-found / invalid-state /
// apply-failure to distinct responses instead of a generic failure.
package errs

import (
	stderrors "errors"
	"fmt"
)

// Code identifies the class of a service error.
type Code string

const (
	CodeValidation   Code = "validation"
	CodeDuplicate    Code = "duplicate_request"
	CodeNotFound     Code = "not_found"
	CodeInvalidState Code = "invalid_state"
	CodeApplyFailed  Code = "apply_failed"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports that a resource does not exist.
func NotFound(resource, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// InvalidInput reports a malformed field in a request.
func InvalidInput(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Duplicate reports that an equivalent pending change request already exists.
func Duplicate(message string) *Error {
	return &Error{Code: CodeDuplicate, Message: message}
}

// InvalidState reports a transition attempted on a non-pending request.
func InvalidState(message string) *Error {
	return &Error{Code: CodeInvalidState, Message: message}
}

// ApplyFailed reports that the entity-mutation step of an approval failed.
// The change request is left pending so the reviewer can retry.
func ApplyFailed(err error, message string) *Error {
	return &Error{Code: CodeApplyFailed, Message: message, Err: err}
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
