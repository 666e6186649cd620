/*
derive.go - Payout derivation engine

PURPOSE:
  Turns (installments x share assignments) into derived payouts. Pure: no
  store access, no clock, no side effects. Called on every read.

ALGORITHM (per installment):
  1. Look up the owning lead's current share assignment.
  2. Multiple mode with >= 1 sub-course rows: one payout per row,
     key = (installment, trainer, sub-course).
  3. Otherwise, a lead-level trainer: exactly one payout,
     key = (installment, trainer).
  4. Otherwise: nothing.

  amount = paid_amount * share_percent / 100, kept unrounded.

CURRENT STATE ONLY:
  Assignments are always the lead's current ones, for all its installments.
  Changing a share percent changes the derived amount of installments paid
  before the change. Historical percentages are not tracked.

ERRORS:
  A lead whose assignment fails validation is skipped and reported in the
  returned skips; other leads are unaffected.
*/
package payout

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ShareOf returns paid * percent / 100 without rounding.
func ShareOf(paid, percent decimal.Decimal) decimal.Decimal {
	return paid.Mul(percent).Shift(-2)
}

// Skip records a lead whose contribution was left out of a derivation.
type Skip struct {
	LeadID LeadID
	Err    error
}

// Validate checks the share rows that would be used for derivation.
func (a *ShareAssignment) Validate() error {
	if a == nil {
		return nil
	}
	if a.usesSubCourses() {
		for i, row := range a.SubCourses {
			if row.TrainerID <= 0 {
				return &MalformedShareError{LeadID: a.LeadID, Reason: fmt.Sprintf("sub-course row %d has no trainer", i)}
			}
			if row.SubCourseID <= 0 {
				return &MalformedShareError{LeadID: a.LeadID, Reason: fmt.Sprintf("sub-course row %d has no sub-course", i)}
			}
			if err := checkPercent(a.LeadID, row.SharePercent); err != nil {
				return err
			}
		}
		return nil
	}
	if a.Single != nil {
		if a.Single.TrainerID <= 0 {
			return &MalformedShareError{LeadID: a.LeadID, Reason: "single share has no trainer"}
		}
		return checkPercent(a.LeadID, a.Single.SharePercent)
	}
	return nil
}

func checkPercent(lead LeadID, p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return &MalformedShareError{LeadID: lead, Reason: fmt.Sprintf("share percent %s outside [0, 100]", p)}
	}
	return nil
}

func (a *ShareAssignment) usesSubCourses() bool {
	return a.Structure == StructureMultiple && len(a.SubCourses) > 0
}

// Derive computes one payout per (installment x applicable share row).
// Output order follows the installments, then sub-course order.
func Derive(installments []Installment, assignments map[LeadID]*ShareAssignment) ([]DerivedPayout, []Skip) {
	var (
		out     []DerivedPayout
		skips   []Skip
		checked = make(map[LeadID]error)
	)

	for _, inst := range installments {
		a := assignments[inst.LeadID]
		if a == nil {
			continue
		}

		err, seen := checked[inst.LeadID]
		if !seen {
			err = a.Validate()
			checked[inst.LeadID] = err
			if err != nil {
				skips = append(skips, Skip{LeadID: inst.LeadID, Err: err})
			}
		}
		if err != nil {
			continue
		}

		out = append(out, deriveInstallment(inst, a)...)
	}
	return out, skips
}

func deriveInstallment(inst Installment, a *ShareAssignment) []DerivedPayout {
	base := DerivedPayout{
		LeadID:           inst.LeadID,
		InstallmentCount: inst.InstallmentCount,
		PaymentDate:      inst.PaymentDate,
		StudentName:      inst.StudentName,
		BatchID:          inst.BatchID,
		BatchName:        inst.BatchName,
	}

	if a.usesSubCourses() {
		out := make([]DerivedPayout, 0, len(a.SubCourses))
		for _, row := range a.SubCourses {
			p := base
			p.Key = DerivedKey{InstallmentID: inst.ID, TrainerID: row.TrainerID, SubCourseID: row.SubCourseID}
			p.SharePercent = row.SharePercent
			p.Amount = ShareOf(inst.PaidAmount, row.SharePercent)
			p.SubCourseName = row.SubCourseName
			p.TrainerName = row.TrainerName
			out = append(out, p)
		}
		return out
	}

	if a.Single == nil {
		return nil
	}
	p := base
	p.Key = DerivedKey{InstallmentID: inst.ID, TrainerID: a.Single.TrainerID}
	p.SharePercent = a.Single.SharePercent
	p.Amount = ShareOf(inst.PaidAmount, a.Single.SharePercent)
	p.TrainerName = a.Single.TrainerName
	return []DerivedPayout{p}
}

// ResolveShare returns the share percent the given key was derived from,
// using the lead's current assignment. A key resolves only if Derive would
// emit it today: sub-course keys need sub-course mode, lead-level keys need
// the lead not to use sub-course rows.
func ResolveShare(a *ShareAssignment, key DerivedKey) (decimal.Decimal, error) {
	if a == nil {
		return decimal.Zero, &UnresolvableShareError{Key: key}
	}
	if err := a.Validate(); err != nil {
		return decimal.Zero, err
	}

	if key.IsSubCourse() != a.usesSubCourses() {
		return decimal.Zero, &UnresolvableShareError{Key: key, LeadID: a.LeadID}
	}

	if key.IsSubCourse() {
		for _, row := range a.SubCourses {
			if row.SubCourseID == key.SubCourseID && row.TrainerID == key.TrainerID {
				return row.SharePercent, nil
			}
		}
		return decimal.Zero, &UnresolvableShareError{Key: key, LeadID: a.LeadID}
	}

	if a.Single != nil && a.Single.TrainerID == key.TrainerID {
		return a.Single.SharePercent, nil
	}
	return decimal.Zero, &UnresolvableShareError{Key: key, LeadID: a.LeadID}
}
