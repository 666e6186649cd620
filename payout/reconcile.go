/*
reconcile.go - Overlay persisted status onto derived payouts

PURPOSE:
  Derived payouts are recomputed on every read, so a human's Paid / On Hold
  mark has to re-attach to the same logical payout each time. The join key
  is (installment_id, trainer_id); the sub-course is not part of it.

RULES:
  - Output has the same length and order as the derived list.
  - Match: status, paid_on and the durable id come from the persisted row.
    The amount does NOT: display always shows the live recomputation, the
    stored amount is an audit snapshot only.
  - No match: the id is the derived key rendered as a temporary id, status
    is Pending and paid_on is nil.
  - Several persisted rows for one key: the most recently updated wins.
*/
package payout

// StatusKeys returns the distinct join keys of a derived list, in order.
func StatusKeys(derived []DerivedPayout) []StatusKey {
	seen := make(map[StatusKey]bool, len(derived))
	keys := make([]StatusKey, 0, len(derived))
	for _, d := range derived {
		k := d.Key.StatusKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// Merge overlays persisted statuses onto derived payouts.
func Merge(derived []DerivedPayout, persisted []PersistedStatus) []View {
	byKey := make(map[StatusKey]PersistedStatus, len(persisted))
	for _, p := range persisted {
		k := p.Key()
		if cur, ok := byKey[k]; ok && !p.UpdatedAt.After(cur.UpdatedAt) {
			continue
		}
		byKey[k] = p
	}

	views := make([]View, len(derived))
	for i, d := range derived {
		v := View{DerivedPayout: d}
		if p, ok := byKey[d.Key.StatusKey()]; ok {
			v.Ref = PersistedRef{ID: p.ID}
			v.Status = p.Status
			v.PaidOn = p.PaidOn
		} else {
			v.Ref = DerivedRef{Key: d.Key}
			v.Status = StatusPending
		}
		views[i] = v
	}
	return views
}
