package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrUnknownField       = errors.New("unknown field")
	ErrDerivedField       = errors.New("field is derived and cannot be set")
	ErrComparableNotFound = errors.New("comparable not found")
)

// ValidationError rejects a single field mutation. The record keeps its
// previous value for the field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
