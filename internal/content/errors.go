package content

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// Common engine error types
var (
	// ErrNotFound is returned when a content type, content, term or comment
	// does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a slug collision could not be resolved
	ErrDuplicate = errors.New("duplicate")

	// ErrValidationFailed is returned when validation fails
	ErrValidationFailed = errors.New("validation failed")

	errCycle = errors.New("parent cycle")
)

// ValidationError contains multiple validation errors for an input
type ValidationError struct {
	Errors []FieldError
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	if len(ve.Errors) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", ve.Errors[0].Field, ve.Errors[0].Message)
	}
	return fmt.Sprintf("validation failed: %d errors", len(ve.Errors))
}

// Is lets errors.Is match ErrValidationFailed
func (ve *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string
	Message string
}

// validation collects field errors while an input is checked
type validation struct {
	errs []FieldError
}

func (v *validation) add(field, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validation) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errs}
}

func invalid(field, format string, args ...any) error {
	v := &validation{}
	v.add(field, format, args...)
	return v.err()
}

func notFound(what string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
}

// storageErr maps adapter errors onto engine errors, keeping the
// *storage.StorageError reachable through errors.As
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case storage.IsNotFound(err):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case storage.IsDuplicate(err):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	default:
		return err
	}
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate returns true if the error is ErrDuplicate
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsValidationFailed returns true if the error is a validation error
func IsValidationFailed(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
