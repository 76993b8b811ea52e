package reconcile

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse matches every MalformedError via errors.Is.
var ErrMalformedResponse = errors.New("malformed response")

// MalformedError reports a payload that does not fit its expected shape.
type MalformedError struct {
	Source string
	Field  string
	Err    error
}

func (e *MalformedError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("malformed %s: field %q: %v", e.Source, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("malformed %s: missing field %q", e.Source, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("malformed %s: %v", e.Source, e.Err)
	default:
		return "malformed " + e.Source
	}
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }

func missing(source, field string) error {
	return &MalformedError{Source: source, Field: field}
}

func invalid(source, field string, err error) error {
	return &MalformedError{Source: source, Field: field, Err: err}
}
