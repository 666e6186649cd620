package sqldb

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"github.com/warp/leadcrm/payout"
)

// =============================================================================
// COLLABORATOR WRITES
// =============================================================================
// The CRM owns these tables. The writes below exist for demo scenarios and
// tests; the payout core never calls them.

// Lead is a student record with its lead-level trainer assignment.
// TrainerID zero means no lead-level trainer.
type Lead struct {
	ID           payout.LeadID
	StudentName  string
	BatchID      payout.BatchID
	Structure    payout.CourseStructure
	TrainerID    payout.TrainerID
	SharePercent decimal.Decimal
}

// LeadSubCourse is one multiple-mode share row. TrainerID zero means the
// sub-course has no trainer yet.
type LeadSubCourse struct {
	SubCourseID  payout.SubCourseID
	TrainerID    payout.TrainerID
	SharePercent decimal.Decimal
}

func (s *Store) SaveTrainer(ctx context.Context, id payout.TrainerID, name string) error {
	return s.upsertNamed(ctx, "trainers", int64(id), name)
}

func (s *Store) SaveBatch(ctx context.Context, id payout.BatchID, name string) error {
	return s.upsertNamed(ctx, "batches", int64(id), name)
}

func (s *Store) SaveSubCourse(ctx context.Context, id payout.SubCourseID, name string) error {
	return s.upsertNamed(ctx, "sub_courses", int64(id), name)
}

func (s *Store) upsertNamed(ctx context.Context, table string, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO `+table+` (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`), id, name)
	if err != nil {
		return unavailable("save "+table, err)
	}
	return nil
}

// SaveLead inserts or replaces a lead.
func (s *Store) SaveLead(ctx context.Context, l Lead) error {
	structure := l.Structure
	if structure == "" {
		structure = payout.StructureSingle
	}

	var (
		trainer sql.NullInt64
		share   sql.NullString
	)
	if l.TrainerID != 0 {
		trainer = sql.NullInt64{Int64: int64(l.TrainerID), Valid: true}
		share = sql.NullString{String: l.SharePercent.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO leads (id, student_name, batch_id, course_structure, trainer_id, trainer_share_percent)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			student_name = excluded.student_name,
			batch_id = excluded.batch_id,
			course_structure = excluded.course_structure,
			trainer_id = excluded.trainer_id,
			trainer_share_percent = excluded.trainer_share_percent
	`), int64(l.ID), l.StudentName, int64(l.BatchID), string(structure), trainer, share)
	if err != nil {
		return unavailable("save lead", err)
	}
	return nil
}

// SetLeadSubCourses replaces all sub-course rows of a lead atomically.
func (s *Store) SetLeadSubCourses(ctx context.Context, lead payout.LeadID, rows []LeadSubCourse) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM lead_sub_courses WHERE lead_id = ?`), int64(lead)); err != nil {
			return unavailable("clear sub-course shares", err)
		}
		for i, r := range rows {
			var trainer sql.NullInt64
			if r.TrainerID != 0 {
				trainer = sql.NullInt64{Int64: int64(r.TrainerID), Valid: true}
			}
			_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
				INSERT INTO lead_sub_courses (lead_id, sort_order, sub_course_id, trainer_id, trainer_share_percent)
				VALUES (?, ?, ?, ?, ?)
			`), int64(lead), i, int64(r.SubCourseID), trainer, r.SharePercent.String())
			if err != nil {
				return unavailable("save sub-course share", err)
			}
		}
		return nil
	})
}

// SaveInstallment inserts an installment. Installments are immutable, so an
// existing id is left untouched.
func (s *Store) SaveInstallment(ctx context.Context, inst payout.Installment) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO installments (id, lead_id, paid_amount, installment_count, payment_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`), int64(inst.ID), int64(inst.LeadID), inst.PaidAmount.String(), inst.InstallmentCount,
		inst.PaymentDate.UTC().Format(DateLayout))
	if err != nil {
		return unavailable("save installment", err)
	}
	return nil
}

// Reset clears all data. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"trainer_payouts", "installments", "lead_sub_courses", "leads",
			"sub_courses", "batches", "trainers",
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return unavailable("reset "+table, err)
			}
		}
		return nil
	})
}
