package models

import "fmt"

// ValidationError reports malformed operator input: an empty carrier name,
// an empty column set, a mapping that references unknown columns.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a reference to something that no longer exists,
// such as a saved upload that was cleaned up before processing.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

// TransformerUnavailableError reports that a carrier's registered
// transformer could not be consulted. It is recoverable: output resolution
// falls back to the carrier's declared file type.
type TransformerUnavailableError struct {
	Carrier string
	Err     error
}

func (e *TransformerUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transformer for %q unavailable: %v", e.Carrier, e.Err)
	}
	return fmt.Sprintf("transformer for %q unavailable", e.Carrier)
}

func (e *TransformerUnavailableError) Unwrap() error { return e.Err }

// PersistenceError reports a carrier-store read or write failure. It is
// surfaced to the operator verbatim and the session stays retryable; it is
// never swallowed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("carrier store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
