package gateway

import (
	"errors"
	"fmt"
)

// ErrBudgetExceeded is returned when a prompt does not fit the context budget
// even after every retrieved chunk was dropped.
var ErrBudgetExceeded = errors.New("prompt exceeds context budget")

// TransportError reports a model call that never completed.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("generation transport failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError reports a response that did not match its schema after the
// repair attempt. Raw holds the last response for diagnostics.
type SchemaError struct {
	Schema string
	Raw    string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("generation output does not match %s: %v", e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// TimeoutError reports a model call aborted by its deadline or by the caller.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("generation timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
