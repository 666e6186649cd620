/*
handlers.go - HTTP API handlers for trainer payouts

ENDPOINTS:
  Payouts:
    GET    /api/payouts                 Derived payouts with status overlay
    PUT    /api/payouts/{id}/status     Set Pending / Paid / On Hold
    GET    /api/payouts/summary         Per-trainer totals
    GET    /api/payouts/export.xlsx     Spreadsheet export

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario
    POST   /api/scenarios/reset         Clear all data

LIST FILTERS (query parameters, all optional, lists comma-separated):
  trainer_id, batch_id, status          applied to merged rows
  paid_from, paid_to                    paid_on range (YYYY-MM-DD, inclusive)
  from, to                              installment payment date range

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: malformed payout id, unknown status, bad query parameter
  - 404: durable payout id or installment not found
  - 409: conflict (not expected; the service resolves races itself)
  - 503: store unavailable
  - 500: everything else

SECURITY NOTE:
  No authentication. Session handling belongs to the surrounding CRM.
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leadcrm/payout"
	"github.com/warp/leadcrm/store/sqldb"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqldb.Store
	Payouts *payout.Service

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqldb.Store) *Handler {
	return &Handler{
		Store:   store,
		Payouts: payout.NewService(store, store),
	}
}

// Health reports whether the database is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// ListPayouts returns derived payouts merged with their persisted status.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, toPayoutDTOs(views))
}

// SetPayoutStatus changes the status of a temporary or durable payout.
func (h *Handler) SetPayoutStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Payouts.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, "Failed to update payout status", err)
		return
	}

	writeJSON(w, http.StatusOK, SetStatusResponse{
		PayoutID: string(res.PayoutID),
		Status:   string(res.Status),
		PaidOn:   formatTimePtr(res.PaidOn),
	})
}

// PayoutSummary returns per-trainer totals for the filtered list.
func (h *Handler) PayoutSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	views, err := h.Payouts.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "Failed to summarize payouts", err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryDTOs(payout.Summarize(views)))
}

// =============================================================================
// FILTER PARSING
// =============================================================================

func parseFilter(r *http.Request) (payout.Filter, error) {
	q := r.URL.Query()
	var f payout.Filter

	trainers, err := parseIDs(q["trainer_id"])
	if err != nil {
		return f, fmt.Errorf("trainer_id: %w", err)
	}
	for _, id := range trainers {
		f.TrainerIDs = append(f.TrainerIDs, payout.TrainerID(id))
	}

	batches, err := parseIDs(q["batch_id"])
	if err != nil {
		return f, fmt.Errorf("batch_id: %w", err)
	}
	for _, id := range batches {
		f.BatchIDs = append(f.BatchIDs, payout.BatchID(id))
	}

	for _, s := range splitValues(q["status"]) {
		status, err := payout.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, status)
	}

	if f.PaidOnFrom, err = parseDate(q.Get("paid_from"), false); err != nil {
		return f, fmt.Errorf("paid_from: %w", err)
	}
	if f.PaidOnTo, err = parseDate(q.Get("paid_to"), true); err != nil {
		return f, fmt.Errorf("paid_to: %w", err)
	}
	if f.PaymentFrom, err = parseDate(q.Get("from"), false); err != nil {
		return f, fmt.Errorf("from: %w", err)
	}
	if f.PaymentTo, err = parseDate(q.Get("to"), false); err != nil {
		return f, fmt.Errorf("to: %w", err)
	}
	return f, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, s := range splitValues(values) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseDate parses YYYY-MM-DD. endOfDay moves the bound to the last instant
// of that day so paid_on timestamps on the day itself are included.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps payout errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case payout.IsClientError(err):
		return http.StatusBadRequest
	case payout.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, payout.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, payout.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
