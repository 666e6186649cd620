/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  payout domain types.

MONEY:
  Amounts are rendered as strings with exactly two decimals ("300.00").
  This is the only place derived amounts are rounded.

IDENTITY:
  payout_id is either a temporary id ("12_5", "12_5_3") or a durable uuid.
  "durable" tells the client which one it holds. After a status change the
  client should replace its payout_id with the one returned.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leadcrm/payout"
)

// =============================================================================
// PAYOUTS
// =============================================================================

// PayoutDTO is one row of the payout list.
type PayoutDTO struct {
	PayoutID         string  `json:"payout_id"`
	Durable          bool    `json:"durable"`
	InstallmentID    int64   `json:"installment_id"`
	LeadID           int64   `json:"lead_id"`
	TrainerID        int64   `json:"trainer_id"`
	SubCourseID      *int64  `json:"sub_course_id,omitempty"`
	StudentName      string  `json:"student_name"`
	BatchID          int64   `json:"batch_id"`
	BatchName        string  `json:"batch_name"`
	SubCourseName    string  `json:"sub_course_name,omitempty"`
	TrainerName      string  `json:"trainer_name"`
	InstallmentCount int     `json:"installment_count"`
	PaymentDate      string  `json:"payment_date"`
	SharePercent     string  `json:"trainer_share_percent"`
	Amount           string  `json:"amount"`
	Status           string  `json:"status"`
	PaidOn           *string `json:"paid_on"`
}

// SetStatusRequest is the body of PUT /api/payouts/{id}/status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// SetStatusResponse carries the durable id the client must use from now on.
type SetStatusResponse struct {
	PayoutID string  `json:"payout_id"`
	Status   string  `json:"status"`
	PaidOn   *string `json:"paid_on"`
}

// TrainerSummaryDTO totals one trainer's payouts.
type TrainerSummaryDTO struct {
	TrainerID   int64  `json:"trainer_id"`
	TrainerName string `json:"trainer_name"`
	Count       int    `json:"count"`
	Total       string `json:"total"`
	Paid        string `json:"paid"`
	Pending     string `json:"pending"`
	OnHold      string `json:"on_hold"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPayoutDTO(v payout.View) PayoutDTO {
	dto := PayoutDTO{
		PayoutID:         v.PayoutID(),
		Durable:          v.IsDurable(),
		InstallmentID:    int64(v.Key.InstallmentID),
		LeadID:           int64(v.LeadID),
		TrainerID:        int64(v.Key.TrainerID),
		StudentName:      v.StudentName,
		BatchID:          int64(v.BatchID),
		BatchName:        v.BatchName,
		SubCourseName:    v.SubCourseName,
		TrainerName:      v.TrainerName,
		InstallmentCount: v.InstallmentCount,
		PaymentDate:      v.PaymentDate.Format("2006-01-02"),
		SharePercent:     v.SharePercent.String(),
		Amount:           v.Amount.StringFixed(2),
		Status:           string(v.Status),
		PaidOn:           formatTimePtr(v.PaidOn),
	}
	if v.Key.IsSubCourse() {
		id := int64(v.Key.SubCourseID)
		dto.SubCourseID = &id
	}
	return dto
}

func toPayoutDTOs(views []payout.View) []PayoutDTO {
	dtos := make([]PayoutDTO, len(views))
	for i, v := range views {
		dtos[i] = toPayoutDTO(v)
	}
	return dtos
}

func toSummaryDTOs(sums []payout.TrainerSummary) []TrainerSummaryDTO {
	dtos := make([]TrainerSummaryDTO, len(sums))
	for i, s := range sums {
		dtos[i] = TrainerSummaryDTO{
			TrainerID:   int64(s.TrainerID),
			TrainerName: s.TrainerName,
			Count:       s.Count,
			Total:       s.Total.StringFixed(2),
			Paid:        s.Paid.StringFixed(2),
			Pending:     s.Pending.StringFixed(2),
			OnHold:      s.OnHold.StringFixed(2),
		}
	}
	return dtos
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
