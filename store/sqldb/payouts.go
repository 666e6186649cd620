package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leadcrm/payout"
)

// =============================================================================
// STATUS STORE (payout.StatusStore interface)
// =============================================================================

const payoutColumns = `id, trainer_id, lead_id, installment_id, amount, status, paid_on, created_at, updated_at`

// keysPerQuery bounds the IN list of StatusesByKeys.
const keysPerQuery = 500

// StatusesByKeys returns every persisted row whose (installment, trainer)
// pair is in keys.
func (s *Store) StatusesByKeys(ctx context.Context, keys []payout.StatusKey) ([]payout.PersistedStatus, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	wanted := make(map[payout.StatusKey]bool, len(keys))
	var installmentIDs []any
	seen := make(map[payout.InstallmentID]bool)
	for _, k := range keys {
		wanted[k] = true
		if !seen[k.InstallmentID] {
			seen[k.InstallmentID] = true
			installmentIDs = append(installmentIDs, int64(k.InstallmentID))
		}
	}

	var result []payout.PersistedStatus
	for start := 0; start < len(installmentIDs); start += keysPerQuery {
		end := min(start+keysPerQuery, len(installmentIDs))
		chunk := installmentIDs[start:end]

		query := `SELECT ` + payoutColumns + ` FROM trainer_payouts WHERE installment_id IN (` + placeholders(len(chunk)) + `)`
		rows, err := s.queryPayouts(ctx, s.db, query, chunk...)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if wanted[row.Key()] {
				result = append(result, row)
			}
		}
	}
	return result, nil
}

// StatusByKey returns the row for key, or nil if none exists.
func (s *Store) StatusByKey(ctx context.Context, key payout.StatusKey) (*payout.PersistedStatus, error) {
	rows, err := s.queryPayouts(ctx, s.db,
		`SELECT `+payoutColumns+` FROM trainer_payouts WHERE installment_id = ? AND trainer_id = ?`,
		int64(key.InstallmentID), int64(key.TrainerID))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *Store) getStatus(ctx context.Context, db execer, id payout.PayoutID) (*payout.PersistedStatus, error) {
	rows, err := s.queryPayouts(ctx, db,
		`SELECT `+payoutColumns+` FROM trainer_payouts WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertStatus writes a new row. A second row for the same
// (installment, trainer) fails with payout.ErrConflict.
func (s *Store) InsertStatus(ctx context.Context, row payout.PersistedStatus) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO trainer_payouts (`+payoutColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		string(row.ID),
		int64(row.TrainerID),
		int64(row.LeadID),
		int64(row.InstallmentID),
		row.Amount.String(),
		string(row.Status),
		formatTime(row.PaidOn),
		row.CreatedAt.UTC().Format(time.RFC3339Nano),
		row.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payout for installment %d, trainer %d: %w",
				row.InstallmentID, row.TrainerID, payout.ErrConflict)
		}
		return unavailable("insert payout status", err)
	}
	return nil
}

// UpdateStatus sets status (and paid_on when non-nil) in place.
func (s *Store) UpdateStatus(ctx context.Context, id payout.PayoutID, status payout.Status, paidOn *time.Time, at time.Time) (*payout.PersistedStatus, error) {
	var updated *payout.PersistedStatus

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`
			UPDATE trainer_payouts
			SET status = ?, paid_on = COALESCE(?, paid_on), updated_at = ?
			WHERE id = ?
		`), string(status), formatTime(paidOn), at.UTC().Format(time.RFC3339Nano), string(id))
		if err != nil {
			return unavailable("update payout status", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable("update payout status", err)
		}
		if n == 0 {
			return fmt.Errorf("payout %s: %w", id, payout.ErrNotFound)
		}

		updated, err = s.getStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("payout %s vanished during update: %w", id, payout.ErrInternal)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CountStatuses returns the number of persisted status rows.
func (s *Store) CountStatuses(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trainer_payouts`).Scan(&n); err != nil {
		return 0, unavailable("count payout statuses", err)
	}
	return n, nil
}

func (s *Store) queryPayouts(ctx context.Context, db execer, query string, args ...any) ([]payout.PersistedStatus, error) {
	rows, err := db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, unavailable("query payout statuses", err)
	}
	defer rows.Close()

	var result []payout.PersistedStatus
	for rows.Next() {
		row, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query payout statuses", err)
	}
	return result, nil
}

func scanPayout(rows *sql.Rows) (payout.PersistedStatus, error) {
	var (
		p         payout.PersistedStatus
		amount    string
		status    string
		paidOn    sql.NullString
		createdAt string
		updatedAt string
	)
	err := rows.Scan(&p.ID, &p.TrainerID, &p.LeadID, &p.InstallmentID,
		&amount, &status, &paidOn, &createdAt, &updatedAt)
	if err != nil {
		return p, fmt.Errorf("failed to scan payout status: %w", err)
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return p, fmt.Errorf("payout %s: amount %q: %w", p.ID, amount, payout.ErrInternal)
	}
	p.Status = payout.Status(status)
	p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return p, fmt.Errorf("payout %s: created_at %q: %w", p.ID, createdAt, payout.ErrInternal)
	}
	p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return p, fmt.Errorf("payout %s: updated_at %q: %w", p.ID, updatedAt, payout.ErrInternal)
	}
	if paidOn.Valid {
		t, err := time.Parse(time.RFC3339Nano, paidOn.String)
		if err != nil {
			return p, fmt.Errorf("payout %s: paid_on %q: %w", p.ID, paidOn.String, payout.ErrInternal)
		}
		p.PaidOn = &t
	}
	return p, nil
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}
