package domain

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Storage sentinels. Repositories return these; services translate them into
// typed errors with business context.
var (
	ErrNotFound  = errors.New("entity not found")
	ErrDuplicate = errors.New("duplicate entity")
)

// ErrorKind is the stable, machine-readable error category exposed to clients.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindConflict          ErrorKind = "CONFLICT"
	KindInvalidState      ErrorKind = "INVALID_STATE"
	KindInvalidInput      ErrorKind = "INVALID_INPUT"
	KindExpired           ErrorKind = "TOKEN_EXPIRED"
	KindAlreadyUsed       ErrorKind = "TOKEN_ALREADY_USED"
	KindAlreadyClosed     ErrorKind = "ALREADY_CLOSED"
	KindNothingToComplete ErrorKind = "NOTHING_TO_COMPLETE"
	KindInternal          ErrorKind = "INTERNAL"
)

// Error is a business error carrying its kind, a client-safe message, the
// optional cause, and the stack where it was raised.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
	Stack   []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error, capturing the caller's stack.
func NewError(kind ErrorKind, message string, err error) *Error {
	var stack []byte
	var withStack *goerrors.Error
	switch {
	case errors.As(err, &withStack):
		stack = withStack.Stack()
	case err != nil:
		stack = goerrors.Wrap(err, 2).Stack()
	default:
		stack = goerrors.Wrap(message, 2).Stack()
	}
	return &Error{Kind: kind, Message: message, Err: err, Stack: stack}
}

func NotFound(message string) *Error     { return NewError(KindNotFound, message, nil) }
func Conflict(message string) *Error     { return NewError(KindConflict, message, nil) }
func InvalidState(message string) *Error { return NewError(KindInvalidState, message, nil) }
func InvalidInput(message string) *Error { return NewError(KindInvalidInput, message, nil) }
func Expired(message string) *Error      { return NewError(KindExpired, message, nil) }
func AlreadyUsed(message string) *Error  { return NewError(KindAlreadyUsed, message, nil) }
func AlreadyClosed(message string) *Error {
	return NewError(KindAlreadyClosed, message, nil)
}
func NothingToComplete(message string) *Error {
	return NewError(KindNothingToComplete, message, nil)
}

// Internal wraps a storage or infrastructure failure. The message is what the
// client sees; err is kept for logs only.
func Internal(message string, err error) *Error { return NewError(KindInternal, message, err) }

// KindOf classifies err. Anything that is not an *Error is internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
