package payout

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filter selects rows of ListPayouts. Trainer, batch, status and paid-on
// bounds are applied to merged rows, so they never change what is derived.
// PaymentFrom/PaymentTo narrow the installments read from the ledger.
type Filter struct {
	TrainerIDs []TrainerID
	BatchIDs   []BatchID
	Statuses   []Status
	PaidOnFrom *time.Time
	PaidOnTo   *time.Time

	PaymentFrom *time.Time
	PaymentTo   *time.Time
}

func (f Filter) installmentFilter() InstallmentFilter {
	return InstallmentFilter{PaymentFrom: f.PaymentFrom, PaymentTo: f.PaymentTo}
}

// Apply returns the rows that match every set criterion, in input order.
func (f Filter) Apply(views []View) []View {
	trainers := setOf(f.TrainerIDs)
	batches := setOf(f.BatchIDs)
	statuses := setOf(f.Statuses)

	out := make([]View, 0, len(views))
	for _, v := range views {
		if trainers != nil && !trainers[v.Key.TrainerID] {
			continue
		}
		if batches != nil && !batches[v.BatchID] {
			continue
		}
		if statuses != nil && !statuses[v.Status] {
			continue
		}
		if f.PaidOnFrom != nil || f.PaidOnTo != nil {
			if v.PaidOn == nil {
				continue
			}
			if f.PaidOnFrom != nil && v.PaidOn.Before(*f.PaidOnFrom) {
				continue
			}
			if f.PaidOnTo != nil && v.PaidOn.After(*f.PaidOnTo) {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

func setOf[T comparable](xs []T) map[T]bool {
	if len(xs) == 0 {
		return nil
	}
	m := make(map[T]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

// =============================================================================
// TRAINER SUMMARY
// =============================================================================

// TrainerSummary totals the rows of one trainer.
type TrainerSummary struct {
	TrainerID   TrainerID
	TrainerName string
	Count       int
	Total       decimal.Decimal
	Paid        decimal.Decimal
	Pending     decimal.Decimal
	OnHold      decimal.Decimal
}

// Summarize groups rows by trainer, in order of first appearance.
func Summarize(views []View) []TrainerSummary {
	idx := make(map[TrainerID]int)
	var out []TrainerSummary

	for _, v := range views {
		i, ok := idx[v.Key.TrainerID]
		if !ok {
			i = len(out)
			idx[v.Key.TrainerID] = i
			out = append(out, TrainerSummary{TrainerID: v.Key.TrainerID, TrainerName: v.TrainerName})
		}
		s := &out[i]
		s.Count++
		s.Total = s.Total.Add(v.Amount)
		switch v.Status {
		case StatusPaid:
			s.Paid = s.Paid.Add(v.Amount)
		case StatusOnHold:
			s.OnHold = s.OnHold.Add(v.Amount)
		default:
			s.Pending = s.Pending.Add(v.Amount)
		}
	}
	return out
}
