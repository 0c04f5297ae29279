package models

import (
	"errors"
	"fmt"
)

// ErrDivideByZero is reported when a mean is requested over an empty group.
var ErrDivideByZero = errors.New("divide by zero: aggregate over empty group")

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// ParseError reports a malformed numeric or timestamp string.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) IsTransient() bool {
	return false
}

// DateError reports a well-formed timestamp naming a date or hour that does not exist.
type DateError struct {
	Value  string
	Reason string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid calendar date %q: %s", e.Value, e.Reason)
}

func (e *DateError) IsTransient() bool {
	return false
}

// SchemaError reports an unknown city or a record missing a field its schema requires.
type SchemaError struct {
	City    City
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s record has no field %q", e.City, e.Field)
}

func (e *SchemaError) IsTransient() bool {
	return false
}

// ErrorKind classifies an error for metrics and ingestion summaries.
func ErrorKind(err error) string {
	var (
		parseErr  *ParseError
		dateErr   *DateError
		schemaErr *SchemaError
		validErr  *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &dateErr):
		return "date_error"
	case errors.As(err, &schemaErr):
		return "schema_error"
	case errors.As(err, &validErr):
		return "validation_error"
	case errors.Is(err, ErrDivideByZero):
		return "divide_by_zero"
	default:
		return "internal_error"
	}
}
