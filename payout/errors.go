/*
errors.go - Error types for payout derivation and status mutation

ERROR CATEGORIES:
  1. Client errors - malformed payout id, unknown status (ErrInvalidArgument)
  2. Missing rows - durable payout id without a backing row (ErrNotFound)
  3. Store races - unique guard on (installment, trainer) fired (ErrConflict)
  4. Store failures - unreachable store (ErrUnavailable)
  5. Invariant violations - a payout whose share can no longer be resolved
     (ErrInternal)

ErrConflict never leaves SetStatus: the service falls back to an update.

USAGE:
  if errors.Is(err, payout.ErrNotFound) { ... }

  var refErr *payout.InvalidRefError
  if errors.As(err, &refErr) { ... }
*/
package payout

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a durable payout id has no backing row,
	// or a temporary key names an installment that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed payout ids and statuses.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict is returned by status stores when an insert hits the
	// (installment_id, trainer_id) uniqueness guard.
	ErrConflict = errors.New("payout status already exists")

	// ErrUnavailable is returned when an underlying store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInternal is returned when stored data violates an invariant.
	ErrInternal = errors.New("internal error")

	// ErrMalformedShare is returned for share rows that cannot be used for
	// derivation. Reads skip the lead; mutations fail.
	ErrMalformedShare = errors.New("malformed share assignment")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRefError is returned when a payout id is neither a uuid nor a
// well-formed derived key.
type InvalidRefError struct {
	Value  string
	Reason string
}

func (e *InvalidRefError) Error() string {
	return fmt.Sprintf("invalid payout id %q: %s", e.Value, e.Reason)
}

func (e *InvalidRefError) Unwrap() error { return ErrInvalidArgument }

// InvalidStatusError is returned for statuses outside Pending/Paid/On Hold.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q: must be one of %q, %q, %q",
		e.Value, StatusPending, StatusPaid, StatusOnHold)
}

func (e *InvalidStatusError) Unwrap() error { return ErrInvalidArgument }

// MalformedShareError describes a share row that failed validation.
type MalformedShareError struct {
	LeadID LeadID
	Reason string
}

func (e *MalformedShareError) Error() string {
	return fmt.Sprintf("lead %d: malformed share assignment: %s", e.LeadID, e.Reason)
}

func (e *MalformedShareError) Unwrap() error { return ErrMalformedShare }

// UnresolvableShareError is returned when a temporary key names a
// trainer or sub-course that the lead's current assignment does not have.
type UnresolvableShareError struct {
	Key    DerivedKey
	LeadID LeadID
}

func (e *UnresolvableShareError) Error() string {
	if e.Key.IsSubCourse() {
		return fmt.Sprintf("lead %d has no share for trainer %d on sub-course %d",
			e.LeadID, e.Key.TrainerID, e.Key.SubCourseID)
	}
	return fmt.Sprintf("lead %d has no single-mode share for trainer %d",
		e.LeadID, e.Key.TrainerID)
}

func (e *UnresolvableShareError) Unwrap() error { return ErrInternal }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
