package folio

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when an operation targeted a document
	// that is absent, stale, or deleted.
	ErrNotFound = errors.New("folio: document not found")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("folio: cannot start a transaction within a transaction")
)

// ValidationError reports a bad field value. It is raised synchronously
// at construction or explicit validation and carries the field path.
type ValidationError struct {
	Path string // Field path, e.g. "displayName" or "tags[2]"
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("folio: validation failed for %q: %s", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given field path.
func NewValidationError(path string, err error) *ValidationError {
	return &ValidationError{Path: path, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// NotFoundError represents an error when a document does not exist,
// or exists only as a stale or deleted revision.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("folio: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("folio: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the document label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given document kind.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConstraintError represents a database constraint violation. It names
// the violated constraint when the driver reports one.
type ConstraintError struct {
	constraint string
	wrap       error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	if e.constraint != "" {
		return fmt.Sprintf("folio: constraint %q violated: %v", e.constraint, e.wrap)
	}
	return fmt.Sprintf("folio: constraint violated: %v", e.wrap)
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// Constraint returns the name of the violated constraint, if known.
func (e *ConstraintError) Constraint() string {
	return e.constraint
}

// NewConstraintError returns a new ConstraintError naming the violated constraint.
func NewConstraintError(constraint string, wrap error) *ConstraintError {
	return &ConstraintError{constraint: constraint, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// ConnectionError represents a pool, network, or timeout failure at the
// connection manager. A timed-out statement surfaces here and must be
// treated as "outcome unknown".
type ConnectionError struct {
	Op  string // Operation that failed, e.g. "query" or "begin"
	Err error  // Underlying driver error
}

// Error returns the error string.
func (e *ConnectionError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("folio: connection failed (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("folio: connection failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError returns a new ConnectionError for the given operation.
func NewConnectionError(op string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Err: err}
}

// IsConnectionError returns true if the error is a ConnectionError.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("folio: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
