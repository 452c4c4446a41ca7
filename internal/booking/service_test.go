package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvia/booking-platform/internal/appointments"
	"github.com/clinvia/booking-platform/internal/doctors"
	"github.com/clinvia/booking-platform/internal/slots"
	"github.com/clinvia/booking-platform/pkg/logging"
)

type fakeDirectory struct {
	mu         sync.Mutex
	records    map[string]*doctors.Doctor
	getErr     error
	setSlotErr error
	snapshots  map[string]slots.Ledger
	versions   map[string]uint64
}

func newFakeDirectory(docs ...*doctors.Doctor) *fakeDirectory {
	d := &fakeDirectory{
		records:   make(map[string]*doctors.Doctor),
		snapshots: make(map[string]slots.Ledger),
		versions:  make(map[string]uint64),
	}
	for _, doc := range docs {
		d.records[doc.ID] = doc
	}
	return d
}

func (d *fakeDirectory) Get(_ context.Context, doctorID string) (*doctors.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.getErr != nil {
		return nil, d.getErr
	}
	doc, ok := d.records[doctorID]
	if !ok {
		return nil, doctors.ErrDoctorNotFound
	}
	cp := *doc
	if snap, ok := d.snapshots[doctorID]; ok {
		cp.Slots = snap
		cp.SlotsVersion = d.versions[doctorID]
	}
	return &cp, nil
}

func (d *fakeDirectory) SetSlots(_ context.Context, doctorID string, snapshot slots.Ledger, version uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.setSlotErr != nil {
		return d.setSlotErr
	}
	if version <= d.versions[doctorID] {
		return nil
	}
	d.snapshots[doctorID] = snapshot
	d.versions[doctorID] = version
	return nil
}

func (d *fakeDirectory) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.getErr = err
	d.setSlotErr = err
}

func (d *fakeDirectory) recover() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.getErr = nil
	d.setSlotErr = nil
}

type fakeStore struct {
	mu        sync.Mutex
	records   map[string]*appointments.Appointment
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*appointments.Appointment)}
}

func (s *fakeStore) Create(_ context.Context, appt *appointments.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *appt
	s.records[appt.ID] = &cp
	return nil
}

func (s *fakeStore) Get(_ context.Context, appointmentID string) (*appointments.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.records[appointmentID]
	if !ok {
		return nil, appointments.ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID string) ([]*appointments.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*appointments.Appointment
	for _, appt := range s.records {
		if appt.UserID == userID {
			cp := *appt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkCancelled(_ context.Context, appointmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.records[appointmentID]
	if !ok {
		return appointments.ErrNotFound
	}
	if appt.Cancelled {
		return appointments.ErrAlreadyCancelled
	}
	appt.Cancelled = true
	return nil
}

func newTestService(dir *fakeDirectory, store *fakeStore) *Service {
	return NewService(slots.NewRegistry(), dir, store, nil, logging.Default())
}

func availableDoctor() *doctors.Doctor {
	return &doctors.Doctor{ID: "doc-1", Name: "Dr. Mehta", Fee: 700, Available: true}
}

func TestReserve_SnapshotsFeeAtBookingTime(t *testing.T) {
	dir := newFakeDirectory(availableDoctor())
	store := newFakeStore()
	svc := newTestService(dir, store)

	appt, err := svc.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-1",
		SlotDate: "2026-09-10",
		SlotTime: "09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(700), appt.Amount)
	assert.Equal(t, "user-1", appt.UserID)
	assert.NotEmpty(t, appt.ID)

	// later fee changes must not affect the stored snapshot
	dir.records["doc-1"].Fee = 900
	stored, err := store.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), stored.Amount)
}

func TestReserve_PersistsLedgerSnapshot(t *testing.T) {
	dir := newFakeDirectory(availableDoctor())
	svc := newTestService(dir, newFakeStore())

	_, err := svc.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-1",
		SlotDate: "2026-09-10",
		SlotTime: "09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, dir.snapshots["doc-1"]["2026-09-10"])
}

func TestReserve_DoctorNotFound(t *testing.T) {
	svc := newTestService(newFakeDirectory(), newFakeStore())

	_, err := svc.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-404",
		SlotDate: "2026-09-10",
		SlotTime: "09:00",
	})
	assert.ErrorIs(t, err, doctors.ErrDoctorNotFound)
}

func TestReserve_DoctorUnavailable(t *testing.T) {
	doc := availableDoctor()
	doc.Available = false
	svc := newTestService(newFakeDirectory(doc), newFakeStore())

	_, err := svc.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-1",
		SlotDate: "2026-09-10",
		SlotTime: "09:00",
	})
	assert.ErrorIs(t, err, ErrDoctorUnavailable)
}

func TestReserve_ConflictOnTakenSlot(t *testing.T) {
	svc := newTestService(newFakeDirectory(availableDoctor()), newFakeStore())
	req := ReserveRequest{DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00"}

	_, err := svc.Reserve(context.Background(), "user-1", req)
	require.NoError(t, err)

	_, err = svc.Reserve(context.Background(), "user-2", req)
	assert.ErrorIs(t, err, slots.ErrSlotConflict)

	// a different time on the same day is still open
	req.SlotTime = "10:00"
	_, err = svc.Reserve(context.Background(), "user-2", req)
	assert.NoError(t, err)
}

func TestReserve_SeedsFromPersistedLedger(t *testing.T) {
	doc := availableDoctor()
	doc.Slots = slots.Ledger{"2026-09-10": {"09:00"}}
	svc := newTestService(newFakeDirectory(doc), newFakeStore())

	_, err := svc.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-1",
		SlotDate: "2026-09-10",
		SlotTime: "09:00",
	})
	assert.ErrorIs(t, err, slots.ErrSlotConflict)
}

func TestReserve_ConcurrentExactlyOneWinner(t *testing.T) {
	svc := newTestService(newFakeDirectory(availableDoctor()), newFakeStore())
	req := ReserveRequest{DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00"}

	const callers = 32
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(context.Background(), "user-1", req)
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, slots.ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)
}

func TestReserve_RollsBackSlotWhenCreateFails(t *testing.T) {
	dir := newFakeDirectory(availableDoctor())
	store := newFakeStore()
	store.createErr = errors.New("dynamo down")
	svc := newTestService(dir, store)
	req := ReserveRequest{DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00"}

	_, err := svc.Reserve(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, dir.snapshots["doc-1"]["2026-09-10"])

	// the slot must be reservable again once the store recovers
	store.createErr = nil
	_, err = svc.Reserve(context.Background(), "user-2", req)
	assert.NoError(t, err)
}

func TestReserve_FailsWhenSnapshotCannotPersist(t *testing.T) {
	dir := newFakeDirectory(availableDoctor())
	dir.setSlotErr = errors.New("redis down")
	svc := newTestService(dir, newFakeStore())
	req := ReserveRequest{DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00"}

	_, err := svc.Reserve(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, ErrPersistence)

	dir.setSlotErr = nil
	_, err = svc.Reserve(context.Background(), "user-1", req)
	assert.NoError(t, err)
}

func TestCancel_FreesSlotForRebooking(t *testing.T) {
	dir := newFakeDirectory(availableDoctor())
	svc := newTestService(dir, newFakeStore())
	req := ReserveRequest{DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00"}

	appt, err := svc.Reserve(context.Background(), "user-1", req)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
	assert.Empty(t, dir.snapshots["doc-1"]["2026-09-10"])

	_, err = svc.Reserve(context.Background(), "user-2", req)
	assert.NoError(t, err)
}

func TestCancel_FreesSlotWhenDirectoryBlips(t *testing.T) {
	dir := newFakeDirectory(availableDoctor())
	svc := newTestService(dir, newFakeStore())
	req := ReserveRequest{DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00"}

	appt, err := svc.Reserve(context.Background(), "user-1", req)
	require.NoError(t, err)

	// The directory drops out for the duration of the cancel. The in-memory
	// ledger is authoritative here, so the cancel still goes through.
	dir.fail(errors.New("redis down"))
	cancelled, err := svc.Cancel(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)

	// Once the directory is back the slot is bookable again.
	dir.recover()
	_, err = svc.Reserve(context.Background(), "user-2", req)
	assert.NoError(t, err)
}

func TestCancel_ColdStartDirectoryDownFailsRetryably(t *testing.T) {
	dir := newFakeDirectory(availableDoctor())
	store := newFakeStore()
	req := ReserveRequest{DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00"}

	appt, err := newTestService(dir, store).Reserve(context.Background(), "user-1", req)
	require.NoError(t, err)

	// A new service instance has an empty registry and must hydrate from
	// the directory before it can release anything. With the directory down
	// the cancel fails instead of silently stranding the slot.
	restarted := newTestService(dir, store)
	dir.fail(errors.New("redis down"))
	_, err = restarted.Cancel(context.Background(), "user-1", appt.ID)
	assert.ErrorIs(t, err, ErrPersistence)

	stored, err := store.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.False(t, stored.Cancelled, "a failed cancel must stay cancellable")

	// Retrying after the directory recovers frees the slot for good.
	dir.recover()
	cancelled, err := restarted.Cancel(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)

	_, err = restarted.Reserve(context.Background(), "user-2", req)
	assert.NoError(t, err)
}

func TestCancel_ColdStartReleaseKeepsOtherBookings(t *testing.T) {
	dir := newFakeDirectory(availableDoctor())
	store := newFakeStore()
	first := newTestService(dir, store)

	appt, err := first.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00",
	})
	require.NoError(t, err)
	_, err = first.Reserve(context.Background(), "user-2", ReserveRequest{
		DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "10:00",
	})
	require.NoError(t, err)

	restarted := newTestService(dir, store)
	_, err = restarted.Cancel(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"10:00"}, dir.snapshots["doc-1"]["2026-09-10"])
}

func TestCancel_NotFound(t *testing.T) {
	svc := newTestService(newFakeDirectory(availableDoctor()), newFakeStore())

	_, err := svc.Cancel(context.Background(), "user-1", "appt-404")
	assert.ErrorIs(t, err, appointments.ErrNotFound)
}

func TestCancel_ForbiddenLeavesSlotBooked(t *testing.T) {
	svc := newTestService(newFakeDirectory(availableDoctor()), newFakeStore())
	req := ReserveRequest{DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00"}

	appt, err := svc.Reserve(context.Background(), "user-1", req)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "user-2", appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// the slot stays taken
	_, err = svc.Reserve(context.Background(), "user-2", req)
	assert.ErrorIs(t, err, slots.ErrSlotConflict)
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	svc := newTestService(newFakeDirectory(availableDoctor()), newFakeStore())

	appt, err := svc.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-1",
		SlotDate: "2026-09-10",
		SlotTime: "09:00",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "user-1", appt.ID)
	assert.ErrorIs(t, err, appointments.ErrAlreadyCancelled)
}

func TestCancel_PaidAppointmentKeepsBothFlags(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(newFakeDirectory(availableDoctor()), store)

	appt, err := svc.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-1",
		SlotDate: "2026-09-10",
		SlotTime: "09:00",
	})
	require.NoError(t, err)
	store.records[appt.ID].Paid = true

	cancelled, err := svc.Cancel(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
	assert.True(t, cancelled.Paid)

	stored, err := store.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Cancelled)
	assert.True(t, stored.Paid)
}

func TestListForUser_OnlyOwnAppointments(t *testing.T) {
	svc := newTestService(newFakeDirectory(availableDoctor()), newFakeStore())

	_, err := svc.Reserve(context.Background(), "user-1", ReserveRequest{
		DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "09:00",
	})
	require.NoError(t, err)
	_, err = svc.Reserve(context.Background(), "user-2", ReserveRequest{
		DoctorID: "doc-1", SlotDate: "2026-09-10", SlotTime: "10:00",
	})
	require.NoError(t, err)

	mine, err := svc.ListForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "09:00", mine[0].SlotTime)
}
