package payout_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leadcrm/payout"
)

func TestMerge_LatestPersistedRowWins(t *testing.T) {
	// GIVEN: Two persisted rows on one (installment, trainer), newest first
	t0 := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	paidOn := t0.Add(time.Hour)
	derived := []payout.DerivedPayout{{
		Key:    payout.DerivedKey{InstallmentID: 1, TrainerID: 7},
		LeadID: 10,
		Amount: dec("300"),
	}}
	persisted := []payout.PersistedStatus{
		{ID: "new", InstallmentID: 1, TrainerID: 7, Status: payout.StatusPaid, PaidOn: &paidOn, Amount: dec("1"), UpdatedAt: t0.Add(time.Hour)},
		{ID: "old", InstallmentID: 1, TrainerID: 7, Status: payout.StatusOnHold, Amount: dec("2"), UpdatedAt: t0},
	}

	// WHEN: Merging
	views := payout.Merge(derived, persisted)

	// THEN: The most recently written row overlays, amount stays live
	require.Len(t, views, 1)
	assert.Equal(t, "new", views[0].PayoutID())
	assert.Equal(t, payout.StatusPaid, views[0].Status)
	assert.Equal(t, &paidOn, views[0].PaidOn)
	assert.True(t, views[0].Amount.Equal(dec("300")))

	// AND: Input order does not matter
	views = payout.Merge(derived, []payout.PersistedStatus{persisted[1], persisted[0]})
	assert.Equal(t, "new", views[0].PayoutID())
}

func TestMerge_UnmatchedRowsGetTemporaryIdentity(t *testing.T) {
	derived := []payout.DerivedPayout{
		{Key: payout.DerivedKey{InstallmentID: 1, TrainerID: 7, SubCourseID: 100}, Amount: dec("10")},
		{Key: payout.DerivedKey{InstallmentID: 1, TrainerID: 8, SubCourseID: 200}, Amount: dec("20")},
	}
	persisted := []payout.PersistedStatus{
		{ID: "p1", InstallmentID: 1, TrainerID: 8, Status: payout.StatusOnHold},
	}

	views := payout.Merge(derived, persisted)

	require.Len(t, views, 2)
	assert.Equal(t, "1_7_100", views[0].PayoutID())
	assert.False(t, views[0].IsDurable())
	assert.Equal(t, payout.StatusPending, views[0].Status)
	assert.Nil(t, views[0].PaidOn)
	assert.Equal(t, "p1", views[1].PayoutID())
	assert.Equal(t, payout.StatusOnHold, views[1].Status)
}
