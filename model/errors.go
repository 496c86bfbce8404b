package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidInput is the cause of every validation failure. Match it with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports which part of a problem failed validation.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidInput, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid builds an InvalidInputError for field.
func Invalid(field, format string, args ...interface{}) error {
	return invalid(field, format, args...)
}

func invalid(field, format string, args ...interface{}) error {
	return errors.WithStack(&InvalidInputError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	})
}
