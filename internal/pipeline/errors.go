package pipeline

import (
	"fmt"
)

// ValidationError names the inbound event field that was missing or invalid.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid field: %s", e.Field)
}

// NotFoundError names the entity a cycle could not resolve.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// PersistenceError marks a ledger write that failed after its local retry.
// When it comes from the final outcome update, the trade's recorded state may
// disagree with what actually happened at the venue; callers must surface it,
// not swallow it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
