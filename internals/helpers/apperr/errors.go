// Package apperr carries the error kinds the order lifecycle reports to its callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindInvalidState Kind = "INVALID_STATE"
	KindConflict     Kind = "CONFLICT"
	KindPersistence  Kind = "PERSISTENCE_ERROR"
	KindUnknown      Kind = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind only, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Message == ""
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrPersistence  = &Error{Kind: KindPersistence}
)

func Validation(msg string, fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// ValidationField is shorthand for a single-field validation failure.
func ValidationField(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: map[string][]string{field: {msg}}}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
