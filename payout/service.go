/*
service.go - ListPayouts and SetPayoutStatus

READ PATH (List):
  installments -> share assignments (one lookup per lead) -> Derive
  -> persisted statuses for the derived keys -> Merge -> Filter

  The three reads are not isolated from each other. A concurrent status
  change may or may not be visible to a read in flight.

WRITE PATH (SetStatus):
  PersistedRef: update the row in place (ErrNotFound if it is gone).
  DerivedRef:
    a. look for an existing row on (installment, trainer); update it if found
    b. otherwise re-derive the amount snapshot and insert a new row
    c. if the insert loses a race (ErrConflict), update the winner's row

  Setting Paid stamps paid_on with the current time. Any other status
  leaves paid_on as it was: it is never cleared here.
*/
package payout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Service is the payout derivation and reconciliation engine.
type Service struct {
	Ledger   Ledger
	Statuses StatusStore

	// Now is the clock used for paid_on and updated_at. Defaults to time.Now.
	Now func() time.Time
}

// NewService creates a service over the given stores.
func NewService(ledger Ledger, statuses StatusStore) *Service {
	return &Service{Ledger: ledger, Statuses: statuses, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// =============================================================================
// READ PATH
// =============================================================================

// List derives payouts, overlays persisted status and applies the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]View, error) {
	installments, err := s.Ledger.Installments(ctx, filter.installmentFilter())
	if err != nil {
		return nil, fmt.Errorf("load installments: %w", err)
	}

	assignments := make(map[LeadID]*ShareAssignment)
	for _, inst := range installments {
		if _, ok := assignments[inst.LeadID]; ok {
			continue
		}
		a, err := s.Ledger.ShareAssignment(ctx, inst.LeadID)
		if err != nil {
			if errors.Is(err, ErrMalformedShare) {
				log.Printf("[Payouts] Skipping lead %d: %v", inst.LeadID, err)
				assignments[inst.LeadID] = nil
				continue
			}
			return nil, fmt.Errorf("load share assignment for lead %d: %w", inst.LeadID, err)
		}
		assignments[inst.LeadID] = a
	}

	derived, skips := Derive(installments, assignments)
	for _, sk := range skips {
		log.Printf("[Payouts] Skipping lead %d: %v", sk.LeadID, sk.Err)
	}
	if len(derived) == 0 {
		return []View{}, nil
	}

	persisted, err := s.Statuses.StatusesByKeys(ctx, StatusKeys(derived))
	if err != nil {
		return nil, fmt.Errorf("load payout statuses: %w", err)
	}

	return filter.Apply(Merge(derived, persisted)), nil
}

// =============================================================================
// WRITE PATH
// =============================================================================

// StatusResult is returned by SetStatus. PayoutID is always durable.
type StatusResult struct {
	PayoutID PayoutID
	Status   Status
	PaidOn   *time.Time
}

func resultOf(p *PersistedStatus) *StatusResult {
	return &StatusResult{PayoutID: p.ID, Status: p.Status, PaidOn: p.PaidOn}
}

// SetStatus parses the raw id and status, then applies SetRefStatus.
func (s *Service) SetStatus(ctx context.Context, rawID, rawStatus string) (*StatusResult, error) {
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	ref, err := ParseRef(rawID)
	if err != nil {
		return nil, err
	}
	return s.SetRefStatus(ctx, ref, status)
}

// SetRefStatus makes a status change durable and returns the durable id the
// caller should use from now on. All transitions between the three statuses
// are allowed.
func (s *Service) SetRefStatus(ctx context.Context, ref Ref, status Status) (*StatusResult, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	now := s.now()

	switch r := ref.(type) {
	case PersistedRef:
		row, err := s.Statuses.UpdateStatus(ctx, r.ID, status, paidOnFor(status, now), now)
		if err != nil {
			return nil, err
		}
		return resultOf(row), nil

	case DerivedRef:
		return s.materialize(ctx, r.Key, status, now)

	default:
		return nil, &InvalidRefError{Value: fmt.Sprint(ref), Reason: "unknown payout id kind"}
	}
}

func (s *Service) materialize(ctx context.Context, key DerivedKey, status Status, now time.Time) (*StatusResult, error) {
	existing, err := s.Statuses.StatusByKey(ctx, key.StatusKey())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.updateExisting(ctx, existing.ID, status, now)
	}

	row, err := s.snapshot(ctx, key, status, now)
	if err != nil {
		return nil, err
	}

	err = s.Statuses.InsertStatus(ctx, *row)
	if errors.Is(err, ErrConflict) {
		// Another caller materialized the same payout first.
		winner, ferr := s.Statuses.StatusByKey(ctx, key.StatusKey())
		if ferr != nil {
			return nil, ferr
		}
		if winner == nil {
			return nil, fmt.Errorf("payout %s: conflict reported but no row found: %w", DerivedRef{Key: key}, ErrInternal)
		}
		return s.updateExisting(ctx, winner.ID, status, now)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[Payouts] Materialized payout %s as %s (%s)", DerivedRef{Key: key}, row.ID, status)
	return resultOf(row), nil
}

func (s *Service) updateExisting(ctx context.Context, id PayoutID, status Status, now time.Time) (*StatusResult, error) {
	row, err := s.Statuses.UpdateStatus(ctx, id, status, paidOnFor(status, now), now)
	if err != nil {
		return nil, err
	}
	return resultOf(row), nil
}

// snapshot re-derives the amount for key from the live ledger.
func (s *Service) snapshot(ctx context.Context, key DerivedKey, status Status, now time.Time) (*PersistedStatus, error) {
	inst, err := s.Ledger.Installment(ctx, key.InstallmentID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("installment %d: %w", key.InstallmentID, ErrNotFound)
	}

	assignment, err := s.Ledger.ShareAssignment(ctx, inst.LeadID)
	if err != nil {
		return nil, err
	}
	if assignment != nil {
		assignment.LeadID = inst.LeadID
	}
	percent, err := ResolveShare(assignment, key)
	if err != nil {
		var ue *UnresolvableShareError
		if errors.As(err, &ue) {
			ue.LeadID = inst.LeadID
		}
		return nil, err
	}

	return &PersistedStatus{
		ID:            NewPayoutID(),
		TrainerID:     key.TrainerID,
		LeadID:        inst.LeadID,
		InstallmentID: key.InstallmentID,
		Amount:        ShareOf(inst.PaidAmount, percent),
		Status:        status,
		PaidOn:        paidOnFor(status, now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func paidOnFor(status Status, now time.Time) *time.Time {
	if status != StatusPaid {
		return nil
	}
	t := now
	return &t
}
