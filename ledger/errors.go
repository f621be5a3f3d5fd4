/*
errors.go - Centralized error types for the debt engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Stores wrap infrastructure failures with fmt.Errorf("...: %w"); the
  engine returns these sentinels for every client-visible condition.

ERROR CATEGORIES:
  1. Not found - debt, credit card or category absent or not owned
  2. Validation - missing or invalid input
  3. Conflict - optimistic concurrency check failed
  4. Anything else - store/transaction failure, reported as server error

USAGE:
  detail, err := engine.Update(ctx, in)
  switch {
  case ledger.IsNotFound(err):   // 404
  case ledger.IsValidation(err): // 400
  case ledger.IsConflict(err):   // 409
  case err != nil:               // 500
  }

SEE ALSO:
  - engine.go: returns these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDebtNotFound is returned when the debt does not exist, is already
	// retired, or belongs to another owner.
	ErrDebtNotFound = errors.New("debt not found")

	// ErrCreditCardNotFound is returned when the financing instrument does
	// not exist or belongs to another owner.
	ErrCreditCardNotFound = errors.New("credit card not found")

	// ErrCategoryNotFound is returned when the category does not exist or is
	// not visible to the owner.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrConcurrentModification is returned when the debt changed between
	// read and write (version mismatch).
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// VersionConflictError reports the versions involved in a failed update.
type VersionConflictError struct {
	DebtID   DebtID
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("debt %d: expected version %d, found %d", e.DebtID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error {
	return ErrConcurrentModification
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDebtNotFound) ||
		errors.Is(err, ErrCreditCardNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the caller's input or
// state, as opposed to a store failure.
func IsClientError(err error) bool {
	return IsNotFound(err) || IsValidation(err) || IsConflict(err)
}
