// Package apperr defines the outcome kinds shared by the domain packages.
//
// Components return errors that match one of the kind sentinels via
// errors.Is; the HTTP layer is the only place that turns a kind into a
// status code.
//
// # Usage
//
//	if title == "" {
//		return nil, apperr.Validation("title is required")
//	}
//	...
//	if errors.Is(err, apperr.ErrNotFound) { ... }
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("too many requests")
	ErrInternal        = errors.New("internal failure")
)

// Error carries a client-safe message together with its kind and an
// optional underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is matches the kind sentinel as well as the wrapped cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func Unauthenticated(format string, args ...any) error {
	return newError(ErrUnauthenticated, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func RateLimited(format string, args ...any) error {
	return newError(ErrRateLimited, format, args...)
}

// Internal wraps a storage or backend fault. The message is what clients
// may see; cause is kept for logging.
func Internal(cause error, message string) error {
	return &Error{Kind: ErrInternal, Message: message, Err: cause}
}

// Wrap attaches a kind to an existing sentinel so both errors.Is(err, kind)
// and errors.Is(err, sentinel) hold.
func Wrap(kind, sentinel error) error {
	return &Error{Kind: kind, Message: sentinel.Error(), Err: sentinel}
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// KindOf reports which kind err belongs to, defaulting to ErrInternal.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrConflict, ErrRateLimited} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
