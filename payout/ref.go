package payout

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Ref identifies the target of a status change. It is one of:
//
//	DerivedRef   - a payout that has no persisted status yet (temporary id)
//	PersistedRef - a payout with a persisted status row (durable id)
//
// Refs are parsed once at the API boundary with ParseRef.
type Ref interface {
	String() string
	isRef()
}

// DerivedRef carries the derivation key of a not-yet-persisted payout.
// Its string form is "installment_trainer" or "installment_trainer_subcourse".
type DerivedRef struct {
	Key DerivedKey
}

func (DerivedRef) isRef() {}

func (r DerivedRef) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(r.Key.InstallmentID), 10))
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(int64(r.Key.TrainerID), 10))
	if r.Key.IsSubCourse() {
		b.WriteByte('_')
		b.WriteString(strconv.FormatInt(int64(r.Key.SubCourseID), 10))
	}
	return b.String()
}

// PersistedRef carries a durable payout id.
type PersistedRef struct {
	ID PayoutID
}

func (PersistedRef) isRef() {}

func (r PersistedRef) String() string { return string(r.ID) }

// NewPayoutID mints a durable identity. UUIDs never parse as derived keys,
// which is what keeps the two id spaces apart.
func NewPayoutID() PayoutID {
	return PayoutID(uuid.NewString())
}

// ParseRef decides whether s is a temporary or a durable payout id.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &InvalidRefError{Value: s, Reason: "empty payout id"}
	}
	if _, err := uuid.Parse(s); err == nil {
		return PersistedRef{ID: PayoutID(s)}, nil
	}

	parts := strings.Split(s, "_")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, &InvalidRefError{Value: s, Reason: "expected installment_trainer[_subcourse]"}
	}

	ids := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			return nil, &InvalidRefError{Value: s, Reason: "ids must be positive integers"}
		}
		// One spelling per payout: no sign, no leading zeros.
		if strconv.FormatInt(n, 10) != p {
			return nil, &InvalidRefError{Value: s, Reason: "ids must be written without sign or leading zeros"}
		}
		ids[i] = n
	}

	key := DerivedKey{InstallmentID: InstallmentID(ids[0]), TrainerID: TrainerID(ids[1])}
	if len(ids) == 3 {
		key.SubCourseID = SubCourseID(ids[2])
	}
	return DerivedRef{Key: key}, nil
}
