// Package ctlerr classifies the four error kinds the iteration controller
// reacts to: transient (retried below this layer), session-level (a
// session failed to produce a usable result), CI failure, and fatal.
package ctlerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for the controller's retry/escalation policy.
type Kind string

const (
	// KindTransient is a rate limit or network blip, already retried
	// inside the LLM client or VCS wrapper before surfacing here.
	KindTransient Kind = "transient"

	// KindSession means a session failed to terminate with a usable
	// result (Planner without submit_plan, Builder with zero edits).
	KindSession Kind = "session"

	// KindCI means continuous integration reported a failing check.
	KindCI Kind = "ci"

	// KindFatal means the cycle cannot continue: clone failed, the
	// persistent store is unreachable, or an uncaught dispatch bug.
	KindFatal Kind = "fatal"
)

// Error wraps a cause with a Kind so callers can branch with errors.As
// instead of string-matching.
type Error struct {
	Kind    Kind
	Op      string // the operation in progress, e.g. "plan", "push", "await_ci"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, ctlerr.KindFatal-shaped sentinel) style checks
// by comparing Kind when the target is also an *Error with only Kind set
// (no Op, Message or Cause).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Cause == nil && t.Op == "" && t.Message == "" && t.Kind == e.Kind
}

// Transient wraps cause as a transient error.
func Transient(op, message string, cause error) *Error {
	return &Error{Kind: KindTransient, Op: op, Message: message, Cause: cause}
}

// Session wraps cause as a session-level error.
func Session(op, message string, cause error) *Error {
	return &Error{Kind: KindSession, Op: op, Message: message, Cause: cause}
}

// CI wraps cause as a CI-failure error.
func CI(op, message string, cause error) *Error {
	return &Error{Kind: KindCI, Op: op, Message: message, Cause: cause}
}

// Fatal wraps cause as a fatal error.
func Fatal(op, message string, cause error) *Error {
	return &Error{Kind: KindFatal, Op: op, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; ok is false otherwise.
func KindOf(err error) (k Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsFatal reports whether err is (or wraps) a fatal ctlerr.Error.
func IsFatal(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindFatal
}

// IsCI reports whether err is (or wraps) a CI-failure ctlerr.Error.
func IsCI(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindCI
}

// IsSession reports whether err is (or wraps) a session-level ctlerr.Error.
func IsSession(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindSession
}
