package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures that cross component boundaries. Handlers map
// kinds to HTTP statuses; services branch on them without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound means the tracker has no such asset, or the ledger has
	// no such row.
	KindNotFound
	// KindProtocol means the tracker answered with a payload that does not
	// match its documented schema.
	KindProtocol
	// KindTimeout means a remote call exceeded its deadline, retries included.
	KindTimeout
	// KindRateLimited means the tracker throttled us and the retry budget
	// ran out.
	KindRateLimited
	// KindConfirmationRequired is the re-check-in guard: the operation was
	// declined pending an explicit override, no state changed.
	KindConfirmationRequired
	// KindSessionClosed means a mark targeted an audit session that has
	// already been closed.
	KindSessionClosed
	// KindConflict means a concurrent mutation won the race and the retry
	// budget is exhausted.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindConfirmationRequired:
		return "confirmation_required"
	case KindSessionClosed:
		return "session_closed"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error carries a kind alongside a message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can write errors.Is(err, apperr.New(kind, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a kinded error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind carried anywhere in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
