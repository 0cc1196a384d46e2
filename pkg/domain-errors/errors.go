// Package domainerrors provides coded errors shared across services and
// transports. Services attach a Code describing what went wrong; the HTTP
// layer translates codes to status codes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are stable identifiers that may be
// returned to API clients; messages are free-form and may change.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeNotFound          Code = "not_found"
	CodeSignatureMissing  Code = "signature_missing"
	CodeSignatureMismatch Code = "signature_mismatch"
	CodeDuplicateEvent    Code = "duplicate_event"
	CodeInvalidTransition Code = "invalid_transition"
	CodeUnknownEvent      Code = "unknown_event"
	CodeUnauthorized      Code = "unauthorized"
	CodeUnavailable       Code = "unavailable"
	CodeInternal          Code = "internal"
)

// Error is a domain error with a stable code and optional wrapped cause.
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

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in domain logic.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should use.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSignatureMissing, CodeSignatureMismatch, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeDuplicateEvent, CodeInvalidTransition, CodeUnknownEvent:
		// Webhook processing outcomes acknowledge receipt; these codes only
		// reach HTTP via the admin API, where conflict is the closest fit.
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
