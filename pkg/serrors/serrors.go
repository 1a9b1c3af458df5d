// Package serrors provides semantic error kinds that travel through the
// engine wrapped around concrete causes, so transport layers can map them to
// status codes without string matching.
package serrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a marker interface implemented by all semantic error kinds created
// with NewKind. It allows distinguishing semantic kinds from ordinary errors.
type Kind interface {
	error
	isKind()
}

// kind is an unexported implementation of Kind used as a sentinel value for a
// semantic error category.
type kind struct{ s string }

func (k kind) Error() string { return k.s }
func (k kind) isKind()       {}

// NewKind creates a new semantic error kind (a sentinel) with the provided
// name. Kinds are comparable and can be used with errors.Is/As through the
// serrors.Error wrapper.
func NewKind(name string) Kind { return kind{s: name} }

// Kinds used across the service.
var (
	// ErrNotFound indicates the requested route or entity does not exist.
	ErrNotFound = NewKind("NOT_FOUND")
	// ErrUnauthorized indicates missing or invalid authentication.
	ErrUnauthorized = NewKind("UNAUTHORIZED")
	// ErrBadRequest indicates the client sent invalid data, e.g. a malformed or oversized URL.
	ErrBadRequest = NewKind("BAD_REQUEST")
	// ErrInternal indicates an unexpected failure.
	ErrInternal = NewKind("INTERNAL")
	// ErrTimeout indicates the operation timed out.
	ErrTimeout = NewKind("TIMEOUT")
	// ErrUnavailable indicates a dependency is temporarily unavailable.
	ErrUnavailable = NewKind("UNAVAILABLE")
	// ErrRateLimited indicates the client exceeded its request budget.
	ErrRateLimited = NewKind("RATE_LIMITED")
)

// Error represents a semantic error carrying a kind (sentinel), an optional
// wrapped error, an optional message and, for rate limiting, the time at which
// the caller may retry.
//
// Matching semantics:
//   - errors.Is(err, target) matches either the kind sentinel or the wrapped error.
//   - errors.As(err, target) succeeds for either the kind sentinel or the wrapped error.
//
// Error string formatting:
//   - If both msg and err are set: "<msg>: <err>"
//   - If only msg is set: "<msg>"
//   - If only err is set: "<err>"
//   - If neither set: the kind's Error() string.
type Error struct {
	kind    Kind  // semantic kind sentinel
	err     error // wrapped error (optional)
	msg     string
	retryAt time.Time
}

// With constructs a new semantic error with the given kind and a
// human-readable message. Use Wrap to also carry a concrete cause.
func With(k Kind, msgFmt string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(msgFmt, args...)}
}

// Wrap constructs a new semantic error with the given kind, wrapping the
// provided cause and attaching a message.
func Wrap(k Kind, err error, msgFmt string, args ...any) *Error {
	return &Error{kind: k, err: err, msg: fmt.Sprintf(msgFmt, args...)}
}

// KindOnly creates a semantic error carrying only the kind.
func KindOnly(k Kind) *Error { return &Error{kind: k} }

// RateLimited creates an ErrRateLimited error that tells the caller when the
// current window resets.
func RateLimited(retryAt time.Time, msgFmt string, args ...any) *Error {
	return &Error{kind: ErrRateLimited, msg: fmt.Sprintf(msgFmt, args...), retryAt: retryAt}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	default:
		if e.kind != nil {
			return e.kind.Error()
		}

		return "unknown error"
	}
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error { return e.err }

// Is matches against either the semantic kind sentinel or the wrapped error.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return e == nil && target == nil
	}
	if e.kind != nil && errors.Is(e.kind, target) {
		return true
	}
	if e.err != nil && errors.Is(e.err, target) {
		return true
	}

	return false
}

// As enables type assertions against either the kind sentinel or the wrapped error.
func (e *Error) As(target any) bool {
	if e == nil || target == nil {
		return false
	}
	if e.kind != nil && errors.As(e.kind, target) {
		return true
	}
	if e.err != nil && errors.As(e.err, target) {
		return true
	}

	return false
}

// Kind returns the semantic kind sentinel associated with this error, or nil.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the message attached to this error.
func (e *Error) Message() string { return e.msg }

// Cause returns the wrapped cause (may be nil).
func (e *Error) Cause() error { return e.err }

// RetryAt returns the time after which a rate-limited request may be retried.
// It is zero for every other kind.
func (e *Error) RetryAt() time.Time { return e.retryAt }

// KindOf extracts the semantic kind from any error chain. Errors without a
// semantic kind are reported as ErrInternal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) && se.kind != nil {
		return se.kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}

	return ErrInternal
}
