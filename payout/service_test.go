package payout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leadcrm/payout"
	"github.com/warp/leadcrm/payout/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.April, 1, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*payout.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := payout.NewService(mem, mem)
	svc.Now = func() time.Time { return testNow }
	return svc, mem
}

// seedSingle: lead 10, trainer 7 at 30%, one installment of 1000.
func seedSingle(mem *store.Memory) {
	mem.AddInstallment(inst(1, 10, "1000", 1))
	mem.SetAssignment(*single(10, 7, "30"))
}

// seedMultiple: lead 20, trainer 1 at 20% and trainer 2 at 50%, one 1000 installment.
func seedMultiple(mem *store.Memory) {
	mem.AddInstallment(inst(2, 20, "1000", 2))
	mem.SetAssignment(*multiple(20, subCourse(100, 1, "20"), subCourse(200, 2, "50")))
}

func findView(t *testing.T, views []payout.View, key payout.DerivedKey) payout.View {
	t.Helper()
	for _, v := range views {
		if v.Key == key {
			return v
		}
	}
	t.Fatalf("no payout with key %+v", key)
	return payout.View{}
}

// =============================================================================
// READ PATH
// =============================================================================

func TestList_SingleMode(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)

	views, err := svc.List(context.Background(), payout.Filter{})
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, "300.00", v.Amount.StringFixed(2))
	assert.Equal(t, payout.StatusPending, v.Status)
	assert.Nil(t, v.PaidOn)
	assert.Equal(t, "1_7", v.PayoutID())
	assert.False(t, v.IsDurable())
}

func TestList_SubCourseFanOut(t *testing.T) {
	svc, mem := newTestService(t)
	seedMultiple(mem)

	views, err := svc.List(context.Background(), payout.Filter{})
	require.NoError(t, err)
	require.Len(t, views, 2)

	a := findView(t, views, payout.DerivedKey{InstallmentID: 2, TrainerID: 1, SubCourseID: 100})
	b := findView(t, views, payout.DerivedKey{InstallmentID: 2, TrainerID: 2, SubCourseID: 200})
	assert.Equal(t, "200.00", a.Amount.StringFixed(2))
	assert.Equal(t, "500.00", b.Amount.StringFixed(2))
	assert.Equal(t, "2_1_100", a.PayoutID())
}

func TestList_NoAssignment(t *testing.T) {
	svc, mem := newTestService(t)
	mem.AddInstallment(inst(3, 30, "1000", 3))

	views, err := svc.List(context.Background(), payout.Filter{})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestList_IsIdempotent(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)
	seedMultiple(mem)
	ctx := context.Background()

	first, err := svc.List(ctx, payout.Filter{})
	require.NoError(t, err)
	second, err := svc.List(ctx, payout.Filter{})
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].PayoutID(), second[i].PayoutID())
		assert.Equal(t, first[i].Status, second[i].Status)
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
}

type malformedLedger struct {
	*store.Memory
	bad payout.LeadID
}

func (l malformedLedger) ShareAssignment(ctx context.Context, lead payout.LeadID) (*payout.ShareAssignment, error) {
	if lead == l.bad {
		return nil, &payout.MalformedShareError{LeadID: lead, Reason: "share percent is not a number"}
	}
	return l.Memory.ShareAssignment(ctx, lead)
}

func TestList_MalformedShareRowSkipsOnlyThatLead(t *testing.T) {
	mem := store.NewMemory()
	seedSingle(mem)
	seedMultiple(mem)
	svc := payout.NewService(malformedLedger{Memory: mem, bad: 20}, mem)

	views, err := svc.List(context.Background(), payout.Filter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, payout.LeadID(10), views[0].LeadID)
}

// =============================================================================
// WRITE PATH
// =============================================================================

func TestSetStatus_MaterializesDurableIdentity(t *testing.T) {
	// GIVEN: A derived payout with a temporary id
	// WHEN: It is marked Paid
	// THEN: The next read shows a durable id, Paid and a paid_on

	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	res, err := svc.SetStatus(ctx, "1_7", "Paid")
	require.NoError(t, err)
	assert.NotEqual(t, "1_7", string(res.PayoutID))
	assert.Equal(t, payout.StatusPaid, res.Status)
	require.NotNil(t, res.PaidOn)
	assert.Equal(t, testNow, *res.PaidOn)

	views, err := svc.List(ctx, payout.Filter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].IsDurable())
	assert.Equal(t, string(res.PayoutID), views[0].PayoutID())
	assert.Equal(t, payout.StatusPaid, views[0].Status)
	require.NotNil(t, views[0].PaidOn)

	row, err := mem.StatusByKey(ctx, payout.StatusKey{InstallmentID: 1, TrainerID: 7})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Amount.Equal(dec("300")))
	assert.Equal(t, payout.LeadID(10), row.LeadID)
}

func TestSetStatus_ReMutationReusesIdentity(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	first, err := svc.SetStatus(ctx, "1_7", "Paid")
	require.NoError(t, err)

	second, err := svc.SetStatus(ctx, string(first.PayoutID), "On Hold")
	require.NoError(t, err)

	assert.Equal(t, first.PayoutID, second.PayoutID)
	assert.Equal(t, payout.StatusOnHold, second.Status)
	assert.Equal(t, 1, mem.StatusCount())
}

func TestSetStatus_StaleTemporaryIDUpdatesExistingRow(t *testing.T) {
	// A UI that did not re-key its row sends the temporary id again.
	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	first, err := svc.SetStatus(ctx, "1_7", "On Hold")
	require.NoError(t, err)
	second, err := svc.SetStatus(ctx, "1_7", "Paid")
	require.NoError(t, err)

	assert.Equal(t, first.PayoutID, second.PayoutID)
	assert.Equal(t, 1, mem.StatusCount())
}

func TestSetStatus_PaidOnIsNeverCleared(t *testing.T) {
	// Documented behavior: moving away from Paid keeps the last paid_on.
	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	paid, err := svc.SetStatus(ctx, "1_7", "Paid")
	require.NoError(t, err)

	svc.Now = func() time.Time { return testNow.Add(48 * time.Hour) }
	pending, err := svc.SetStatus(ctx, string(paid.PayoutID), "Pending")
	require.NoError(t, err)

	assert.Equal(t, payout.StatusPending, pending.Status)
	require.NotNil(t, pending.PaidOn)
	assert.Equal(t, testNow, *pending.PaidOn)
}

func TestSetStatus_NonPaidFirstWriteHasNoPaidOn(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)

	res, err := svc.SetStatus(context.Background(), "1_7", "On Hold")
	require.NoError(t, err)
	assert.Nil(t, res.PaidOn)
}

func TestSetStatus_AllTransitionsAllowed(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	res, err := svc.SetStatus(ctx, "1_7", "Pending")
	require.NoError(t, err)
	id := string(res.PayoutID)

	for _, s := range []string{"Paid", "On Hold", "Paid", "Pending", "On Hold", "Pending"} {
		res, err := svc.SetStatus(ctx, id, s)
		require.NoError(t, err, "transition to %s", s)
		assert.Equal(t, payout.Status(s), res.Status)
	}
	assert.Equal(t, 1, mem.StatusCount())
}

func TestSetStatus_SubCourseSnapshotUsesSubCourseShare(t *testing.T) {
	svc, mem := newTestService(t)
	seedMultiple(mem)
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, "2_2_200", "Paid")
	require.NoError(t, err)

	row, err := mem.StatusByKey(ctx, payout.StatusKey{InstallmentID: 2, TrainerID: 2})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Amount.Equal(dec("500")))

	views, err := svc.List(ctx, payout.Filter{})
	require.NoError(t, err)
	other := findView(t, views, payout.DerivedKey{InstallmentID: 2, TrainerID: 1, SubCourseID: 100})
	assert.False(t, other.IsDurable())
	assert.Equal(t, payout.StatusPending, other.Status)
}

func TestSetStatus_DisplayAmountIsLiveNotSnapshot(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, "1_7", "Paid")
	require.NoError(t, err)

	// Share percent edited after the payout was marked Paid.
	mem.SetAssignment(*single(10, 7, "40"))

	views, err := svc.List(ctx, payout.Filter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "400.00", views[0].Amount.StringFixed(2))
	assert.Equal(t, payout.StatusPaid, views[0].Status)

	row, err := mem.StatusByKey(ctx, payout.StatusKey{InstallmentID: 1, TrainerID: 7})
	require.NoError(t, err)
	assert.True(t, row.Amount.Equal(dec("300")), "snapshot must not move")
}

func TestSetStatus_Errors(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	t.Run("unknown durable id", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, string(payout.NewPayoutID()), "Paid")
		assert.ErrorIs(t, err, payout.ErrNotFound)
	})

	t.Run("malformed temporary id", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, "1-7", "Paid")
		assert.ErrorIs(t, err, payout.ErrInvalidArgument)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, "1_7", "Refunded")
		assert.ErrorIs(t, err, payout.ErrInvalidArgument)
	})

	t.Run("missing installment", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, "99_7", "Paid")
		assert.ErrorIs(t, err, payout.ErrNotFound)
	})

	t.Run("trainer not assigned to lead", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, "1_8", "Paid")
		assert.ErrorIs(t, err, payout.ErrInternal)
		var ue *payout.UnresolvableShareError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, payout.LeadID(10), ue.LeadID)
	})

	t.Run("lead-level key on a sub-course lead", func(t *testing.T) {
		a := multiple(60, subCourse(100, 7, "10"))
		a.Single = &payout.SingleShare{TrainerID: 7, SharePercent: dec("90")}
		mem.AddInstallment(inst(6, 60, "1000", 1))
		mem.SetAssignment(*a)

		views, err := svc.List(ctx, payout.Filter{TrainerIDs: []payout.TrainerID{7}})
		require.NoError(t, err)
		v := findView(t, views, payout.DerivedKey{InstallmentID: 6, TrainerID: 7, SubCourseID: 100})
		assert.True(t, v.Amount.Equal(dec("100")))

		_, err = svc.SetStatus(ctx, "6_7", "Paid")
		assert.ErrorIs(t, err, payout.ErrInternal)
		var ue *payout.UnresolvableShareError
		assert.ErrorAs(t, err, &ue)
	})

	t.Run("lead lost its trainer", func(t *testing.T) {
		mem.AddInstallment(inst(5, 50, "100", 5))
		_, err := svc.SetStatus(ctx, "5_7", "Paid")
		assert.ErrorIs(t, err, payout.ErrInternal)
	})

	assert.Equal(t, 0, mem.StatusCount(), "failed mutations must not write")
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestSetStatus_ConcurrentMaterializationConverges(t *testing.T) {
	// GIVEN: A never-before-seen temporary id
	// WHEN: Many callers materialize it at once
	// THEN: One row, no errors

	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	const callers = 8
	var (
		wg      sync.WaitGroup
		results = make([]*payout.StatusResult, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := "Paid"
			if i%2 == 1 {
				status = "On Hold"
			}
			results[i], errs[i] = svc.SetStatus(ctx, "1_7", status)
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, 1, mem.StatusCount())
	for _, r := range results {
		assert.Equal(t, results[0].PayoutID, r.PayoutID)
	}
}

// racingStore lets a competing writer win between the existence check and
// the insert.
type racingStore struct {
	*store.Memory
	once sync.Once
}

func (r *racingStore) InsertStatus(ctx context.Context, row payout.PersistedStatus) error {
	r.once.Do(func() {
		competitor := row
		competitor.ID = payout.NewPayoutID()
		competitor.Status = payout.StatusOnHold
		competitor.PaidOn = nil
		_ = r.Memory.InsertStatus(ctx, competitor)
	})
	return r.Memory.InsertStatus(ctx, row)
}

func TestSetStatus_LostInsertRaceFallsBackToUpdate(t *testing.T) {
	mem := store.NewMemory()
	seedSingle(mem)
	racing := &racingStore{Memory: mem}
	svc := payout.NewService(mem, racing)
	svc.Now = func() time.Time { return testNow }

	res, err := svc.SetStatus(context.Background(), "1_7", "Paid")
	require.NoError(t, err)

	row, err := mem.StatusByKey(context.Background(), payout.StatusKey{InstallmentID: 1, TrainerID: 7})
	require.NoError(t, err)
	assert.Equal(t, row.ID, res.PayoutID, "the winner's identity is returned")
	assert.Equal(t, payout.StatusPaid, row.Status, "last write wins")
	assert.Equal(t, 1, mem.StatusCount())
}

// =============================================================================
// FILTERS AND SUMMARY
// =============================================================================

func TestList_Filters(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)
	seedMultiple(mem)
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, "2_2_200", "Paid")
	require.NoError(t, err)

	t.Run("by trainer", func(t *testing.T) {
		views, err := svc.List(ctx, payout.Filter{TrainerIDs: []payout.TrainerID{1, 7}})
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})

	t.Run("by status", func(t *testing.T) {
		views, err := svc.List(ctx, payout.Filter{Statuses: []payout.Status{payout.StatusPaid}})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, payout.TrainerID(2), views[0].Key.TrainerID)
	})

	t.Run("by paid-on range", func(t *testing.T) {
		from := testNow.Add(-time.Hour)
		to := testNow.Add(time.Hour)
		views, err := svc.List(ctx, payout.Filter{PaidOnFrom: &from, PaidOnTo: &to})
		require.NoError(t, err)
		assert.Len(t, views, 1)

		later := testNow.Add(24 * time.Hour)
		views, err = svc.List(ctx, payout.Filter{PaidOnFrom: &later})
		require.NoError(t, err)
		assert.Empty(t, views)
	})

	t.Run("by batch", func(t *testing.T) {
		views, err := svc.List(ctx, payout.Filter{BatchIDs: []payout.BatchID{99}})
		require.NoError(t, err)
		assert.Empty(t, views)
	})

	t.Run("by payment date", func(t *testing.T) {
		from := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
		views, err := svc.List(ctx, payout.Filter{PaymentFrom: &from})
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})
}

func TestSummarize(t *testing.T) {
	svc, mem := newTestService(t)
	seedSingle(mem)
	mem.AddInstallment(inst(4, 10, "500", 4))
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, "1_7", "Paid")
	require.NoError(t, err)

	views, err := svc.List(ctx, payout.Filter{})
	require.NoError(t, err)

	sums := payout.Summarize(views)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].Count)
	assert.True(t, sums[0].Total.Equal(dec("450")))
	assert.True(t, sums[0].Paid.Equal(dec("300")))
	assert.True(t, sums[0].Pending.Equal(dec("150")))
	assert.True(t, sums[0].OnHold.IsZero())
}

func TestList_StatusReattachesAfterReassignment(t *testing.T) {
	// GIVEN: A payout marked Paid
	svc, mem := newTestService(t)
	seedSingle(mem)
	ctx := context.Background()

	res, err := svc.SetStatus(ctx, "1_7", "Paid")
	require.NoError(t, err)

	// WHEN: The lead loses its trainer
	mem.ClearAssignment(10)

	// THEN: Nothing is derived, but the persisted row is kept
	views, err := svc.List(ctx, payout.Filter{})
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Equal(t, 1, mem.StatusCount())

	// WHEN: The same trainer is assigned again at a new share
	mem.SetAssignment(*single(10, 7, "40"))

	// THEN: The Paid mark re-attaches, amount follows the new share
	views, err = svc.List(ctx, payout.Filter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, string(res.PayoutID), views[0].PayoutID())
	assert.Equal(t, payout.StatusPaid, views[0].Status)
	assert.True(t, views[0].Amount.Equal(dec("400")))
}
