// Package store provides an in-memory implementation of the payout
// collaborator interfaces.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leadcrm/payout"
)

// =============================================================================
// MEMORY STORE - In-memory ledger + status overlay (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	installments map[payout.InstallmentID]payout.Installment
	assignments  map[payout.LeadID]payout.ShareAssignment
	statuses     map[payout.PayoutID]payout.PersistedStatus
	byKey        map[payout.StatusKey]payout.PayoutID
}

func NewMemory() *Memory {
	return &Memory{
		installments: make(map[payout.InstallmentID]payout.Installment),
		assignments:  make(map[payout.LeadID]payout.ShareAssignment),
		statuses:     make(map[payout.PayoutID]payout.PersistedStatus),
		byKey:        make(map[payout.StatusKey]payout.PayoutID),
	}
}

// AddInstallment records a fee payment.
func (m *Memory) AddInstallment(inst payout.Installment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installments[inst.ID] = inst
}

// SetAssignment replaces a lead's share assignment.
func (m *Memory) SetAssignment(a payout.ShareAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.SubCourses = append([]payout.SubCourseShare(nil), a.SubCourses...)
	m.assignments[a.LeadID] = a
}

// ClearAssignment removes a lead's trainer assignment.
func (m *Memory) ClearAssignment(lead payout.LeadID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments, lead)
}

// StatusCount returns the number of persisted status rows.
func (m *Memory) StatusCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// =============================================================================
// LEDGER (payout.Ledger interface)
// =============================================================================

func (m *Memory) Installments(_ context.Context, f payout.InstallmentFilter) ([]payout.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]payout.Installment, 0, len(m.installments))
	for _, inst := range m.installments {
		if f.PaymentFrom != nil && inst.PaymentDate.Before(*f.PaymentFrom) {
			continue
		}
		if f.PaymentTo != nil && inst.PaymentDate.After(*f.PaymentTo) {
			continue
		}
		result = append(result, inst)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PaymentDate.Equal(result[j].PaymentDate) {
			return result[i].PaymentDate.Before(result[j].PaymentDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) Installment(_ context.Context, id payout.InstallmentID) (*payout.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.installments[id]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

func (m *Memory) ShareAssignment(_ context.Context, lead payout.LeadID) (*payout.ShareAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assignments[lead]
	if !ok {
		return nil, nil
	}
	a.SubCourses = append([]payout.SubCourseShare(nil), a.SubCourses...)
	if a.Single != nil {
		single := *a.Single
		a.Single = &single
	}
	return &a, nil
}

// =============================================================================
// STATUS STORE (payout.StatusStore interface)
// =============================================================================

func (m *Memory) StatusesByKeys(_ context.Context, keys []payout.StatusKey) ([]payout.PersistedStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []payout.PersistedStatus
	for _, k := range keys {
		if id, ok := m.byKey[k]; ok {
			result = append(result, m.statuses[id])
		}
	}
	return result, nil
}

func (m *Memory) StatusByKey(_ context.Context, key payout.StatusKey) (*payout.PersistedStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[key]
	if !ok {
		return nil, nil
	}
	row := m.statuses[id]
	return &row, nil
}

// InsertStatus enforces the (installment, trainer) uniqueness guard.
func (m *Memory) InsertStatus(_ context.Context, row payout.PersistedStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byKey[row.Key()]; ok {
		return payout.ErrConflict
	}
	if _, ok := m.statuses[row.ID]; ok {
		return payout.ErrConflict
	}
	m.statuses[row.ID] = row
	m.byKey[row.Key()] = row.ID
	return nil
}

func (m *Memory) UpdateStatus(_ context.Context, id payout.PayoutID, status payout.Status, paidOn *time.Time, at time.Time) (*payout.PersistedStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.statuses[id]
	if !ok {
		return nil, payout.ErrNotFound
	}
	row.Status = status
	if paidOn != nil {
		t := *paidOn
		row.PaidOn = &t
	}
	row.UpdatedAt = at
	m.statuses[id] = row
	return &row, nil
}
