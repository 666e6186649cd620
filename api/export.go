/*
export.go - Spreadsheet export of the payout list

PURPOSE:
  GET /api/payouts/export.xlsx returns the same rows as GET /api/payouts
  (same filters) as an Excel workbook, for the accounts team.

SHEETS:
  Payouts:  one row per payout
  Summary:  per-trainer totals by status
*/
package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leadcrm/payout"
	"github.com/xuri/excelize/v2"
)

const (
	payoutsSheet = "Payouts"
	summarySheet = "Summary"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var payoutsHeader = []any{
	"Payout ID", "Student", "Batch", "Sub-Course", "Trainer",
	"Installment #", "Payment Date", "Share %", "Amount", "Status", "Paid On",
}

var summaryHeader = []any{"Trainer", "Payouts", "Total", "Paid", "Pending", "On Hold"}

// ExportPayouts streams the filtered payout list as an XLSX workbook.
func (h *Handler) ExportPayouts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	views, err := h.Payouts.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "Failed to list payouts", err)
		return
	}

	f, err := buildWorkbook(views)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="payouts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		// Headers are already sent; the client sees a truncated file.
		log.Printf("[Payouts] Failed to stream export: %v", err)
	}
}

func buildWorkbook(views []payout.View) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", payoutsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, err
	}

	if err := writeRow(f, payoutsSheet, 1, payoutsHeader); err != nil {
		f.Close()
		return nil, err
	}
	for i, v := range views {
		paidOn := ""
		if v.PaidOn != nil {
			paidOn = v.PaidOn.UTC().Format(time.DateOnly)
		}
		row := []any{
			v.PayoutID(), v.StudentName, v.BatchName, v.SubCourseName, v.TrainerName,
			v.InstallmentCount, v.PaymentDate.Format(time.DateOnly),
			money(v.SharePercent), money(v.Amount), string(v.Status), paidOn,
		}
		if err := writeRow(f, payoutsSheet, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := writeRow(f, summarySheet, 1, summaryHeader); err != nil {
		f.Close()
		return nil, err
	}
	for i, s := range payout.Summarize(views) {
		row := []any{
			s.TrainerName, s.Count, money(s.Total), money(s.Paid), money(s.Pending), money(s.OnHold),
		}
		if err := writeRow(f, summarySheet, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// money rounds to cents for display. Spreadsheet cells hold numbers so
// totals can be recomputed in Excel.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
