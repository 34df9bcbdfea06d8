// Package cierr defines the error taxonomy shared by the scheduling core.
// Each error carries a Kind so the API layer can map it to a transport
// status code without string matching.
package cierr

import (
	"errors"
	"fmt"
)

// Kind classifies a scheduling error.
type Kind int

const (
	// KindNotFound means a referenced resource does not exist.
	KindNotFound Kind = iota
	// KindForbidden means the caller or one of its owners is inactive,
	// or a visibility rule was violated.
	KindForbidden
	// KindPreconditionFailed means the request is well-formed but the
	// current catalog state cannot satisfy it (inactive topic, virtual
	// topic with no real topic, no active component for a type, ...).
	KindPreconditionFailed
	// KindConflict means a storage-level uniqueness or locking conflict;
	// the operation is safe to retry.
	KindConflict
	// KindInvalid means malformed input.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Error is a kind-tagged error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two Errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NotFound returns a KindNotFound error for the named resource.
func NotFound(resource string, id any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %v not found", resource, id)}
}

// Forbidden returns a KindForbidden error.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// PreconditionFailed returns a KindPreconditionFailed error.
func PreconditionFailed(format string, args ...any) error {
	return &Error{Kind: KindPreconditionFailed, Msg: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error wrapping err (err may be nil).
func Conflict(msg string, err error) error {
	return &Error{Kind: KindConflict, Msg: msg, Err: err}
}

// Invalid returns a KindInvalid error.
func Invalid(format string, args ...any) error {
	return &Error{Kind: KindInvalid, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err, and whether err is a cierr error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a cierr error of the given kind.
func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
