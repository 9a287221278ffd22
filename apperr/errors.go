package apperr

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-checkable class of an error returned to clients.
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindNotFound         Kind = "not_found"
	KindAuth             Kind = "auth_error"
	KindUpstream         Kind = "upstream_unavailable"
	KindOrderingClosed   Kind = "ordering_closed"
	KindInternal         Kind = "internal_error"
)

// Error carries a kind, an optional finer-grained code and a user-facing message.
// Err holds the underlying cause and is never rendered to clients.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Remaining *int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// CapacityExceeded reports the loaves still available for the day. Negative values
// (possible only after a concurrent over-admission) are reported as zero.
func CapacityExceeded(day string, remaining int) *Error {
	if remaining < 0 {
		remaining = 0
	}
	return &Error{
		Kind:      KindCapacityExceeded,
		Code:      "capacity_exceeded",
		Message:   fmt.Sprintf("Not enough stock available. Only %d loaves remaining for %s", remaining, day),
		Remaining: &remaining,
	}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: message}
}

func Auth(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Code: "upstream_unavailable", Message: message, Err: cause}
}

func OrderingClosed(message string) *Error {
	return &Error{Kind: KindOrderingClosed, Code: "maintenance", Message: message}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "Internal server error", Err: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for anything untyped.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
