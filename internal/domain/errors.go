package domain

import (
	"errors"
	"fmt"
)

// Error categories. Callers wrap them with %w; the HTTP layer maps them to status codes.
var (
	ErrValidation   = errors.New("validation error")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError reports an invalid field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

func BadRequest(msg string) error { return fmt.Errorf("%w: %s", ErrBadRequest, msg) }

func NotFound(msg string) error { return fmt.Errorf("%w: %s", ErrNotFound, msg) }

func Unauthorized(msg string) error { return fmt.Errorf("%w: %s", ErrUnauthorized, msg) }
