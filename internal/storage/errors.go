package storage

import (
	"errors"
	"fmt"
)

// Common storage error types
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrNoCollection is returned when a collection was never provisioned
	ErrNoCollection = errors.New("collection not found")

	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("duplicate value")

	// ErrInvalidQuery is returned for queries the adapter cannot translate
	ErrInvalidQuery = errors.New("invalid query")

	// ErrClosed is returned by calls made after Close
	ErrClosed = errors.New("storage closed")
)

// StorageError wraps a backend failure with the operation that caused it
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Collection, e.Err)
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns err wrapped in a StorageError, or nil
func Wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Collection: collection, Err: err}
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNoCollection returns true if the error is ErrNoCollection
func IsNoCollection(err error) bool {
	return errors.Is(err, ErrNoCollection)
}

// IsDuplicate returns true if the error is ErrDuplicate
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
