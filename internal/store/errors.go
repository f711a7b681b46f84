package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrPersistence = errors.New("persistence failure")

	// errConflictOnInsert signals that a concurrent writer inserted the same
	// fingerprint first. TrackError handles it by falling back to the update
	// path; it never leaves this package.
	errConflictOnInsert = errors.New("insert rejected as duplicate")
)

// ValidationError reports malformed input. It matches ErrValidation with
// errors.Is and unwraps to Err when set.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError reports a storage failure during Op. It matches
// ErrPersistence with errors.Is and unwraps to the driver error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
