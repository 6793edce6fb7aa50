package inventory

import (
	"errors"
	"fmt"

	"mise/internal/models"
	"mise/internal/storage"
)

// Sentinel errors for errors.Is matching.
var (
	ErrValidation = errors.New("inventory: invalid input")
	ErrNotFound   = errors.New("inventory: item not found")
)

// ValidationError reports a rejected argument. State is left unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("inventory: validation failed on %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports an operation on an item that is not stocked.
type NotFoundError struct {
	Category models.Category
	Item     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("inventory: %q not found in %s", e.Item, e.Category)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsDegraded reports whether err only signals that a mutation was applied in
// memory but could not be saved.
func IsDegraded(err error) bool {
	return err != nil && errors.Is(err, storage.ErrPersistence)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a ValidationError or a quantity ParseError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, models.ErrParse)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// persistenceFailures flattens a joined save error into its per-resource parts.
func persistenceFailures(err error) []*storage.PersistenceError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*storage.PersistenceError
		for _, e := range joined.Unwrap() {
			out = append(out, persistenceFailures(e)...)
		}
		return out
	}
	var perr *storage.PersistenceError
	if errors.As(err, &perr) {
		return []*storage.PersistenceError{perr}
	}
	return nil
}
