/*
Package payout derives what trainers are owed from student fee installments
and reconciles those derived amounts with the human-set payout status.

PURPOSE:
  Trainer payouts are never stored as such. Every read recomputes them from
  the installment ledger and the lead's current share assignments. The only
  durable state this package owns is a small overlay: which derived payout a
  human marked Paid / On Hold / Pending, and when it was paid.

KEY CONCEPTS IN THIS FILE (types.go):
  - Installment: one fee payment a student made against a lead
  - ShareAssignment: how a lead's fee is split with trainer(s)
  - DerivedPayout: computed fact "trainer T is owed A for installment I"
  - PersistedStatus: the durable status overlay row
  - Status: Pending / Paid / On Hold

ASSIGNMENT MODES:
  A lead is either in single mode (one trainer, one share percent for the
  whole lead) or in multiple mode (zero or more sub-course rows, each with
  its own trainer and share percent). Shares across sub-courses do not have
  to add up to 100; the remainder belongs to the institute.

PRECISION:
  All money uses decimal.Decimal. Amounts are carried unrounded and only
  rounded to 2 places where they are rendered (see api/dto.go).

SEE ALSO:
  - derive.go:    Derivation engine
  - reconcile.go: Merge of derived payouts with persisted status
  - service.go:   ListPayouts / SetPayoutStatus
  - ref.go:       Temporary vs durable payout identity
*/
package payout

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type InstallmentID int64
type LeadID int64
type TrainerID int64
type SubCourseID int64
type BatchID int64

// PayoutID is the durable identity of a persisted status row.
// It is assigned on first persistence and is never equal to a derived key.
type PayoutID string

// =============================================================================
// INSTALLMENT - Read-only ledger row
// =============================================================================

// Installment is one fee payment. This package never writes installments.
type Installment struct {
	ID               InstallmentID
	LeadID           LeadID
	PaidAmount       decimal.Decimal
	InstallmentCount int
	PaymentDate      time.Time

	// Display fields joined from the lead and batch records.
	StudentName string
	BatchID     BatchID
	BatchName   string
}

// InstallmentFilter narrows which installments are read from the ledger.
// Zero values mean "no bound".
type InstallmentFilter struct {
	PaymentFrom *time.Time
	PaymentTo   *time.Time
}

// =============================================================================
// SHARE ASSIGNMENT - How a lead's fee is split
// =============================================================================

type CourseStructure string

const (
	StructureSingle   CourseStructure = "single"
	StructureMultiple CourseStructure = "multiple"
)

// SingleShare is the lead-level trainer assignment.
type SingleShare struct {
	TrainerID    TrainerID
	TrainerName  string
	SharePercent decimal.Decimal
}

// SubCourseShare is one row of a multiple-mode lead.
type SubCourseShare struct {
	SubCourseID   SubCourseID
	SubCourseName string
	TrainerID     TrainerID
	TrainerName   string
	SharePercent  decimal.Decimal
}

// ShareAssignment is the current assignment state of one lead.
// Single may be set even when Structure is multiple; it is the fallback
// when the lead has no sub-course rows.
type ShareAssignment struct {
	LeadID     LeadID
	Structure  CourseStructure
	Single     *SingleShare
	SubCourses []SubCourseShare
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusOnHold  Status = "On Hold"
)

// ParseStatus accepts exactly the three status values.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusOnHold:
		return Status(s), nil
	}
	return "", &InvalidStatusError{Value: s}
}

// =============================================================================
// DERIVED PAYOUT - Ephemeral, recomputed on every read
// =============================================================================

// DerivedKey identifies a derived payout. SubCourseID is zero for
// single-mode payouts.
type DerivedKey struct {
	InstallmentID InstallmentID
	TrainerID     TrainerID
	SubCourseID   SubCourseID
}

func (k DerivedKey) IsSubCourse() bool { return k.SubCourseID != 0 }

// StatusKey is the join key between derived payouts and persisted rows.
// It deliberately ignores the sub-course.
func (k DerivedKey) StatusKey() StatusKey {
	return StatusKey{InstallmentID: k.InstallmentID, TrainerID: k.TrainerID}
}

type StatusKey struct {
	InstallmentID InstallmentID
	TrainerID     TrainerID
}

// DerivedPayout is what the derivation engine emits, before any overlay.
type DerivedPayout struct {
	Key          DerivedKey
	LeadID       LeadID
	Amount       decimal.Decimal // unrounded
	SharePercent decimal.Decimal

	InstallmentCount int
	PaymentDate      time.Time
	StudentName      string
	BatchID          BatchID
	BatchName        string
	SubCourseName    string
	TrainerName      string
}

// =============================================================================
// PERSISTED STATUS - The only durable entity
// =============================================================================

// PersistedStatus is a human-set status attached to a derived payout.
// Amount is a snapshot taken when the row was first written; it is kept for
// audit and never used for display.
type PersistedStatus struct {
	ID            PayoutID
	TrainerID     TrainerID
	LeadID        LeadID
	InstallmentID InstallmentID
	Amount        decimal.Decimal
	Status        Status
	PaidOn        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p PersistedStatus) Key() StatusKey {
	return StatusKey{InstallmentID: p.InstallmentID, TrainerID: p.TrainerID}
}

// =============================================================================
// VIEW ROW - Derived payout with overlay applied
// =============================================================================

// View is one row of ListPayouts.
type View struct {
	DerivedPayout

	// Ref is either the durable id or the temporary derived key.
	Ref    Ref
	Status Status
	PaidOn *time.Time
}

// PayoutID renders the identity a caller should use for this row.
func (v View) PayoutID() string { return v.Ref.String() }

// IsDurable reports whether the row already has a persisted status.
func (v View) IsDurable() bool {
	_, ok := v.Ref.(PersistedRef)
	return ok
}
