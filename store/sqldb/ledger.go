package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leadcrm/payout"
)

// DateLayout is the storage format of installment payment dates.
const DateLayout = "2006-01-02"

// =============================================================================
// LEDGER (payout.Ledger interface)
// =============================================================================

const installmentColumns = `
	i.id, i.lead_id, i.paid_amount, i.installment_count, i.payment_date,
	l.student_name, COALESCE(l.batch_id, 0), COALESCE(b.name, '')
`

const installmentFrom = `
	FROM installments i
	JOIN leads l ON l.id = i.lead_id
	LEFT JOIN batches b ON b.id = l.batch_id
`

// Installments returns installments ordered by payment date, then id.
func (s *Store) Installments(ctx context.Context, f payout.InstallmentFilter) ([]payout.Installment, error) {
	query := `SELECT` + installmentColumns + installmentFrom + ` WHERE 1 = 1`
	var args []any
	if f.PaymentFrom != nil {
		query += ` AND i.payment_date >= ?`
		args = append(args, f.PaymentFrom.UTC().Format(DateLayout))
	}
	if f.PaymentTo != nil {
		query += ` AND i.payment_date <= ?`
		args = append(args, f.PaymentTo.UTC().Format(DateLayout))
	}
	query += ` ORDER BY i.payment_date ASC, i.id ASC`

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, unavailable("query installments", err)
	}
	defer rows.Close()

	var result []payout.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query installments", err)
	}
	return result, nil
}

// Installment returns one installment, or nil if it does not exist.
func (s *Store) Installment(ctx context.Context, id payout.InstallmentID) (*payout.Installment, error) {
	query := `SELECT` + installmentColumns + installmentFrom + ` WHERE i.id = ?`

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), int64(id))
	if err != nil {
		return nil, unavailable("query installment", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, unavailable("query installment", err)
		}
		return nil, nil
	}
	inst, err := scanInstallment(rows)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func scanInstallment(rows *sql.Rows) (payout.Installment, error) {
	var (
		inst        payout.Installment
		paidAmount  string
		paymentDate string
	)
	err := rows.Scan(
		&inst.ID, &inst.LeadID, &paidAmount, &inst.InstallmentCount, &paymentDate,
		&inst.StudentName, &inst.BatchID, &inst.BatchName,
	)
	if err != nil {
		return inst, fmt.Errorf("failed to scan installment: %w", err)
	}

	inst.PaidAmount, err = decimal.NewFromString(paidAmount)
	if err != nil {
		return inst, fmt.Errorf("installment %d: paid amount %q: %w", inst.ID, paidAmount, payout.ErrInternal)
	}
	inst.PaymentDate, err = time.Parse(DateLayout, paymentDate)
	if err != nil {
		return inst, fmt.Errorf("installment %d: payment date %q: %w", inst.ID, paymentDate, payout.ErrInternal)
	}
	return inst, nil
}

// ShareAssignment returns the lead's current assignment, or nil if the lead
// has neither a lead-level trainer nor any sub-course trainer.
func (s *Store) ShareAssignment(ctx context.Context, lead payout.LeadID) (*payout.ShareAssignment, error) {
	var (
		structure   string
		trainerID   sql.NullInt64
		share       sql.NullString
		trainerName sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT l.course_structure, l.trainer_id, l.trainer_share_percent, t.name
		FROM leads l
		LEFT JOIN trainers t ON t.id = l.trainer_id
		WHERE l.id = ?
	`), int64(lead)).Scan(&structure, &trainerID, &share, &trainerName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("query lead", err)
	}

	a := &payout.ShareAssignment{LeadID: lead, Structure: payout.CourseStructure(structure)}

	if trainerID.Valid {
		percent, err := parseShare(lead, share)
		if err != nil {
			return nil, err
		}
		a.Single = &payout.SingleShare{
			TrainerID:    payout.TrainerID(trainerID.Int64),
			TrainerName:  trainerName.String,
			SharePercent: percent,
		}
	}

	if a.Structure == payout.StructureMultiple {
		a.SubCourses, err = s.subCourseShares(ctx, lead)
		if err != nil {
			return nil, err
		}
	}

	if a.Single == nil && len(a.SubCourses) == 0 {
		return nil, nil
	}
	return a, nil
}

func (s *Store) subCourseShares(ctx context.Context, lead payout.LeadID) ([]payout.SubCourseShare, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT lsc.sub_course_id, COALESCE(sc.name, ''), lsc.trainer_id, COALESCE(t.name, ''),
		       lsc.trainer_share_percent
		FROM lead_sub_courses lsc
		LEFT JOIN sub_courses sc ON sc.id = lsc.sub_course_id
		LEFT JOIN trainers t ON t.id = lsc.trainer_id
		WHERE lsc.lead_id = ? AND lsc.trainer_id IS NOT NULL
		ORDER BY lsc.sort_order ASC
	`), int64(lead))
	if err != nil {
		return nil, unavailable("query sub-course shares", err)
	}
	defer rows.Close()

	var result []payout.SubCourseShare
	for rows.Next() {
		var (
			row   payout.SubCourseShare
			share sql.NullString
		)
		if err := rows.Scan(&row.SubCourseID, &row.SubCourseName, &row.TrainerID, &row.TrainerName, &share); err != nil {
			return nil, fmt.Errorf("failed to scan sub-course share: %w", err)
		}
		row.SharePercent, err = parseShare(lead, share)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query sub-course shares", err)
	}
	return result, nil
}

func parseShare(lead payout.LeadID, share sql.NullString) (decimal.Decimal, error) {
	if !share.Valid {
		return decimal.Zero, &payout.MalformedShareError{LeadID: lead, Reason: "trainer assigned without a share percent"}
	}
	d, err := decimal.NewFromString(share.String)
	if err != nil {
		return decimal.Zero, &payout.MalformedShareError{LeadID: lead, Reason: fmt.Sprintf("share percent %q is not a number", share.String)}
	}
	return d, nil
}
