/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the CRM tables with realistic
  data for demos. Each scenario creates trainers, batches, sub-courses, leads
  with their share assignments, and paid installments. Payouts are never
  seeded directly: they are derived from that data on every list.

AVAILABLE SCENARIOS:
  single-trainer:  One trainer per lead, several installments each
  sub-courses:     Multiple-structure leads split across sub-course trainers
  full-institute:  Both structures, a lead without a trainer, and payouts
                   already marked Paid / On Hold

HOW SCENARIOS WORK:
  1. Reset database (clear all data)
  2. Create trainers, batches, sub-courses
  3. Create leads and their share rows
  4. Add installments
  5. Optionally change payout statuses through the payout service

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "sub-courses"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Payout handlers
  - store/sqldb/seed.go: Collaborator table writes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leadcrm/payout"
	"github.com/warp/leadcrm/store/sqldb"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-trainer",
		Name:        "Single Trainer",
		Description: "Each lead has one trainer with a lead-level share",
	},
	{
		ID:          "sub-courses",
		Name:        "Sub-Courses",
		Description: "Multiple-structure leads split across sub-course trainers",
	},
	{
		ID:          "full-institute",
		Name:        "Full Institute",
		Description: "Mixed structures, an unassigned lead, existing Paid / On Hold payouts",
	},
}

// scenarioData is everything a scenario writes to the CRM tables.
type scenarioData struct {
	trainers     map[payout.TrainerID]string
	batches      map[payout.BatchID]string
	subCourses   map[payout.SubCourseID]string
	leads        []sqldb.Lead
	shares       map[payout.LeadID][]sqldb.LeadSubCourse
	installments []payout.Installment
	// statuses are applied after seeding, keyed by temporary payout id
	statuses map[string]payout.Status
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var data *scenarioData
	switch req.ScenarioID {
	case "single-trainer":
		data = singleTrainerScenario()
	case "sub-courses":
		data = subCoursesScenario()
	case "full-institute":
		data = fullInstituteScenario()
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeServiceError(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := h.apply(ctx, data); err != nil {
		writeServiceError(w, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	log.Printf("[Scenarios] Loaded %s", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeServiceError(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// LOADING
// =============================================================================

func (h *Handler) apply(ctx context.Context, d *scenarioData) error {
	for id, name := range d.trainers {
		if err := h.Store.SaveTrainer(ctx, id, name); err != nil {
			return err
		}
	}
	for id, name := range d.batches {
		if err := h.Store.SaveBatch(ctx, id, name); err != nil {
			return err
		}
	}
	for id, name := range d.subCourses {
		if err := h.Store.SaveSubCourse(ctx, id, name); err != nil {
			return err
		}
	}
	for _, l := range d.leads {
		if err := h.Store.SaveLead(ctx, l); err != nil {
			return err
		}
	}
	for lead, rows := range d.shares {
		if err := h.Store.SetLeadSubCourses(ctx, lead, rows); err != nil {
			return err
		}
	}
	for _, inst := range d.installments {
		if err := h.Store.SaveInstallment(ctx, inst); err != nil {
			return err
		}
	}
	for id, status := range d.statuses {
		if _, err := h.Payouts.SetStatus(ctx, id, string(status)); err != nil {
			return fmt.Errorf("set %s to %s: %w", id, status, err)
		}
	}
	return nil
}

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func installment(id payout.InstallmentID, lead payout.LeadID, amount string, n int, date time.Time) payout.Installment {
	return payout.Installment{
		ID:               id,
		LeadID:           lead,
		PaidAmount:       decimal.RequireFromString(amount),
		InstallmentCount: n,
		PaymentDate:      date,
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func singleTrainerScenario() *scenarioData {
	return &scenarioData{
		trainers: map[payout.TrainerID]string{1: "Asha Rao", 2: "Bilal Khan"},
		batches:  map[payout.BatchID]string{1: "Full Stack Jan"},
		leads: []sqldb.Lead{
			{ID: 1, StudentName: "Meera Iyer", BatchID: 1, Structure: payout.StructureSingle, TrainerID: 1, SharePercent: pct("30")},
			{ID: 2, StudentName: "Rohan Das", BatchID: 1, Structure: payout.StructureSingle, TrainerID: 2, SharePercent: pct("25")},
		},
		installments: []payout.Installment{
			installment(1, 1, "10000", 1, date(2024, time.January, 5)),
			installment(2, 1, "10000", 2, date(2024, time.February, 5)),
			installment(3, 2, "15000", 1, date(2024, time.January, 12)),
		},
	}
}

func subCoursesScenario() *scenarioData {
	return &scenarioData{
		trainers:   map[payout.TrainerID]string{1: "Asha Rao", 2: "Bilal Khan", 3: "Chen Wei"},
		batches:    map[payout.BatchID]string{1: "Data Science Mar"},
		subCourses: map[payout.SubCourseID]string{10: "Python", 11: "Statistics", 12: "Machine Learning"},
		leads: []sqldb.Lead{
			{ID: 1, StudentName: "Kavya Nair", BatchID: 1, Structure: payout.StructureMultiple},
			{ID: 2, StudentName: "Arjun Mehta", BatchID: 1, Structure: payout.StructureMultiple},
		},
		shares: map[payout.LeadID][]sqldb.LeadSubCourse{
			1: {
				{SubCourseID: 10, TrainerID: 1, SharePercent: pct("10")},
				{SubCourseID: 11, TrainerID: 2, SharePercent: pct("12.5")},
				{SubCourseID: 12, TrainerID: 3, SharePercent: pct("20")},
			},
			2: {
				{SubCourseID: 10, TrainerID: 1, SharePercent: pct("15")},
				{SubCourseID: 12, TrainerID: 0, SharePercent: pct("20")},
			},
		},
		installments: []payout.Installment{
			installment(1, 1, "24000", 1, date(2024, time.March, 1)),
			installment(2, 1, "24000", 2, date(2024, time.April, 1)),
			installment(3, 2, "30000", 1, date(2024, time.March, 8)),
		},
	}
}

func fullInstituteScenario() *scenarioData {
	return &scenarioData{
		trainers:   map[payout.TrainerID]string{1: "Asha Rao", 2: "Bilal Khan", 3: "Chen Wei"},
		batches:    map[payout.BatchID]string{1: "Full Stack Jan", 2: "Data Science Mar"},
		subCourses: map[payout.SubCourseID]string{10: "Python", 11: "Statistics"},
		leads: []sqldb.Lead{
			{ID: 1, StudentName: "Meera Iyer", BatchID: 1, Structure: payout.StructureSingle, TrainerID: 1, SharePercent: pct("30")},
			{ID: 2, StudentName: "Kavya Nair", BatchID: 2, Structure: payout.StructureMultiple},
			// Multiple structure without rows falls back to the lead trainer
			{ID: 3, StudentName: "Dev Patel", BatchID: 2, Structure: payout.StructureMultiple, TrainerID: 3, SharePercent: pct("18")},
			// No trainer: no payouts
			{ID: 4, StudentName: "Sara Ali", BatchID: 1, Structure: payout.StructureSingle},
		},
		shares: map[payout.LeadID][]sqldb.LeadSubCourse{
			2: {
				{SubCourseID: 10, TrainerID: 1, SharePercent: pct("10")},
				{SubCourseID: 11, TrainerID: 2, SharePercent: pct("15")},
			},
		},
		installments: []payout.Installment{
			installment(1, 1, "10000", 1, date(2024, time.January, 5)),
			installment(2, 1, "10000", 2, date(2024, time.February, 5)),
			installment(3, 2, "24000", 1, date(2024, time.March, 1)),
			installment(4, 3, "12000", 1, date(2024, time.March, 3)),
			installment(5, 4, "9000", 1, date(2024, time.January, 20)),
		},
		statuses: map[string]payout.Status{
			"1_1":    payout.StatusPaid,
			"3_2_11": payout.StatusOnHold,
		},
	}
}
