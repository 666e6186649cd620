/*
store.go - Collaborator interfaces

PURPOSE:
  The payout core reads installments and share assignments it does not own,
  and reads/writes the status overlay it does own. Both sides are interfaces
  so the same service runs over the in-memory store (tests, demos) and the
  SQL store (SQLite / PostgreSQL).

KEY INTERFACES:
  Ledger:      installments + current share assignments (read-only)
  StatusStore: persisted payout status rows

UNIQUENESS:
  StatusStore implementations MUST reject a second row for the same
  (installment_id, trainer_id) with ErrConflict. The service relies on it to
  turn concurrent first writes into one row.

IMPLEMENTATIONS:
  - payout/store/memory.go
  - store/sqldb
*/
package payout

import (
	"context"
	"time"
)

// Ledger is the read-only view of installments and share assignments.
type Ledger interface {
	// Installments returns installments ordered by payment date, then id.
	Installments(ctx context.Context, filter InstallmentFilter) ([]Installment, error)

	// Installment returns one installment, or nil if it does not exist.
	Installment(ctx context.Context, id InstallmentID) (*Installment, error)

	// ShareAssignment returns the lead's current assignment, or nil if the
	// lead has no trainer at all. Rows that cannot be decoded are reported
	// with an error wrapping ErrMalformedShare.
	ShareAssignment(ctx context.Context, lead LeadID) (*ShareAssignment, error)
}

// StatusStore persists the status overlay.
type StatusStore interface {
	// StatusesByKeys returns every persisted row whose key is in keys.
	StatusesByKeys(ctx context.Context, keys []StatusKey) ([]PersistedStatus, error)

	// StatusByKey returns the row for key, or nil if none exists.
	StatusByKey(ctx context.Context, key StatusKey) (*PersistedStatus, error)

	// InsertStatus writes a new row. Returns ErrConflict if a row for the
	// same key already exists.
	InsertStatus(ctx context.Context, row PersistedStatus) error

	// UpdateStatus sets status, and paid_on when paidOn is non-nil, on the
	// row with the given id. Returns ErrNotFound if there is no such row.
	UpdateStatus(ctx context.Context, id PayoutID, status Status, paidOn *time.Time, at time.Time) (*PersistedStatus, error)
}
