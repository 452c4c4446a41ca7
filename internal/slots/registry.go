package slots

import "sync"

// Registry serializes ledger access per doctor. Each doctor gets its own
// mutex so reservations for unrelated doctors never contend; the lock covers
// only the in-memory check-and-commit, never persistence or gateway calls.
//
// Every mutation bumps a per-doctor version under that lock, and the version
// travels with the snapshot. Persistence layers compare versions so a slow
// writer holding an older snapshot can never overwrite a newer one.
type Registry struct {
	mu      sync.Mutex
	doctors map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	ledger  Ledger
	version uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{doctors: make(map[string]*entry)}
}

func (r *Registry) entryFor(doctorID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.doctors[doctorID]
	if !ok {
		e = &entry{ledger: Ledger{}}
		r.doctors[doctorID] = e
	}
	return e
}

// Tracks reports whether the registry already holds in-memory state for the
// doctor, without creating an entry as a side effect.
func (r *Registry) Tracks(doctorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.doctors[doctorID]
	return ok
}

// Seed loads a persisted ledger snapshot, and the version it was persisted
// at, for a doctor not yet tracked in memory. The first snapshot wins; once
// the registry holds state for a doctor, that state is authoritative and
// later seeds are ignored.
func (r *Registry) Seed(doctorID string, snapshot Ledger, version uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[doctorID]; ok {
		return
	}
	r.doctors[doctorID] = &entry{ledger: snapshot.Clone(), version: version}
}

// IsBooked reports whether the slot is currently booked for the doctor.
func (r *Registry) IsBooked(doctorID, slotDate, slotTime string) bool {
	e := r.entryFor(doctorID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.IsBooked(slotDate, slotTime)
}

// Reserve books the slot, failing with ErrSlotConflict if it is taken.
// Exactly one of any set of concurrent Reserve calls for the same
// (doctor, date, time) succeeds. On success it returns a snapshot of the
// doctor's ledger, and its version, for persistence outside the lock.
func (r *Registry) Reserve(doctorID, slotDate, slotTime string) (Ledger, uint64, error) {
	e := r.entryFor(doctorID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.reserve(slotDate, slotTime); err != nil {
		return nil, 0, err
	}
	e.version++
	return e.ledger.Clone(), e.version, nil
}

// Release frees the slot. Releasing an already-free slot is a no-op, never
// an error. Returns a snapshot of the doctor's ledger, and its version, for
// persistence.
func (r *Registry) Release(doctorID, slotDate, slotTime string) (Ledger, uint64) {
	e := r.entryFor(doctorID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledger.release(slotDate, slotTime)
	e.version++
	return e.ledger.Clone(), e.version
}

// Snapshot returns a copy of the doctor's current ledger.
func (r *Registry) Snapshot(doctorID string) Ledger {
	e := r.entryFor(doctorID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Clone()
}
