// Package slots tracks booked time slots per doctor. The ledger is the
// source of truth for availability; reservation and release for a single
// doctor are serialized so a check-then-insert can never double-book.
package slots

import (
	"errors"
	"sort"
)

// ErrSlotConflict is returned when the requested slot is already booked.
var ErrSlotConflict = errors.New("slot already booked")

// Ledger maps a calendar date ("2006-01-02") to the ordered set of booked
// time labels for that date. Time labels are opaque strings; equality is the
// only conflict test.
type Ledger map[string][]string

// IsBooked reports whether slotTime is booked on slotDate.
func (l Ledger) IsBooked(slotDate, slotTime string) bool {
	times := l[slotDate]
	i := sort.SearchStrings(times, slotTime)
	return i < len(times) && times[i] == slotTime
}

// reserve inserts slotTime into slotDate's booked set, keeping order.
// Callers must hold the owning doctor's lock.
func (l Ledger) reserve(slotDate, slotTime string) error {
	times := l[slotDate]
	i := sort.SearchStrings(times, slotTime)
	if i < len(times) && times[i] == slotTime {
		return ErrSlotConflict
	}
	times = append(times, "")
	copy(times[i+1:], times[i:])
	times[i] = slotTime
	l[slotDate] = times
	return nil
}

// release removes slotTime from slotDate's booked set. Releasing a free slot
// is a no-op. Callers must hold the owning doctor's lock.
func (l Ledger) release(slotDate, slotTime string) {
	times := l[slotDate]
	i := sort.SearchStrings(times, slotTime)
	if i >= len(times) || times[i] != slotTime {
		return
	}
	times = append(times[:i], times[i+1:]...)
	if len(times) == 0 {
		delete(l, slotDate)
		return
	}
	l[slotDate] = times
}

// Clone returns a deep copy safe to hand to callers outside the lock.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return Ledger{}
	}
	out := make(Ledger, len(l))
	for date, times := range l {
		cp := make([]string, len(times))
		copy(cp, times)
		out[date] = cp
	}
	return out
}
