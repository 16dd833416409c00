// Package apperr defines the tagged error type used across the core
// packages in place of the (status_code, message) tuples the original
// component code returned.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind classifies a core failure. It maps onto an HTTP status at the
// boundary but carries no HTTP concept itself.
type Kind string

const (
	BadInput Kind = "bad_input"
	Conflict Kind = "conflict"
	NotFound Kind = "not_found"
	Internal Kind = "internal"
)

// Error is the error type every fallible core operation returns.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Status maps Kind to the HTTP status code the original tuples carried.
func (e *Error) Status() int {
	switch e.Kind {
	case BadInput:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func BadInputf(format string, args ...any) *Error  { return Newf(BadInput, format, args...) }
func Conflictf(format string, args ...any) *Error  { return Newf(Conflict, format, args...) }
func NotFoundf(format string, args ...any) *Error  { return Newf(NotFound, format, args...) }
func Internalf(format string, args ...any) *Error  { return Newf(Internal, format, args...) }

// As extracts an *Error from err, or reports ok=false if err isn't one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
