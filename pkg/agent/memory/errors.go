package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("memory: validation failed")

	// ErrStoreIO matches every *StoreIOError.
	ErrStoreIO = errors.New("memory: store i/o failed")
)

// ValidationError reports a malformed memory item or ingestion input.
type ValidationError struct {
	Field  string
	Reason string
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("memory: invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreIOError reports a persistence failure. Append-only files confine the
// damage of a failed append to the newest record.
type StoreIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("memory: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("memory: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStoreIO) match.
func (e *StoreIOError) Is(target error) bool {
	return target == ErrStoreIO
}
