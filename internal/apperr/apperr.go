package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Domain errors unwrap to exactly one of these so callers can
// branch with errors.Is without knowing the concrete domain error.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
)

type Error struct {
	Kind   error
	Msg    string
	Fields map[string]string
}

func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validation builds a validation error carrying per-field messages.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Msg: "one or more fields are invalid", Fields: fields}
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// FieldsOf returns the per-field messages attached anywhere in err's chain.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
