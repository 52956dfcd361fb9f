// Package domainerrors defines the error contract between services and
// transports. Services translate store sentinels and validation failures into
// coded errors; transports map codes onto HTTP statuses without inspecting
// error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category that callers can act on.
type Code string

const (
	// CodeInvalidInput marks malformed values that can never succeed (e.g. a
	// metric outside [0,1]). Not retryable.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest marks requests missing required fields.
	CodeBadRequest Code = "bad_request"

	// CodeValidation marks requests that are well-formed but violate a
	// validation rule.
	CodeValidation Code = "validation"

	// CodeNotFound marks lookups for entities that do not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks requests that contradict already-recorded state,
	// such as attaching a different anchor ref to a certificate.
	CodeConflict Code = "conflict"

	// CodeUnauthorized marks requests lacking the required capability.
	CodeUnauthorized Code = "unauthorized"

	// CodeUnavailable marks transient conditions the caller may retry:
	// scorer outages and allocation failure after one epoch advance.
	CodeUnavailable Code = "unavailable"

	// CodeInvariantViolation marks domain invariant breaches. These indicate
	// a caller sequencing bug, not bad user input.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks unexpected failures. Detail is never exposed to
	// external callers.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a human-readable description, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. A nil err returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// produced outside this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status transports should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
