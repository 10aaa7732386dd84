// Package apperrors classifies failures so the presentation layer can decide
// how to render them without knowing which component produced them.
package apperrors

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a user-facing message and, optionally, the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func NewAppError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return NewAppError(KindValidation, message, nil)
}

func NotFound(message string) *Error {
	return NewAppError(KindNotFound, message, nil)
}

func Conflict(message string, err error) *Error {
	return NewAppError(KindConflict, message, err)
}

func Internal(message string, err error) *Error {
	return NewAppError(KindInternal, message, err)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of the first *Error in err's chain. Errors that were
// never classified are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message returns the user-facing message for err. Internal failures get a
// generic message so driver details never reach the client.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "something went wrong"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsConflict(err error) bool { return KindOf(err) == KindConflict }
