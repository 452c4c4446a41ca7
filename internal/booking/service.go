// Package booking coordinates slot reservation and cancellation across the
// in-memory slot registry, the doctor directory, and the appointment store.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinvia/booking-platform/internal/appointments"
	"github.com/clinvia/booking-platform/internal/doctors"
	"github.com/clinvia/booking-platform/internal/observability/metrics"
	"github.com/clinvia/booking-platform/internal/slots"
	"github.com/clinvia/booking-platform/pkg/logging"
)

// DoctorDirectory is the slice of the doctor store the service needs.
type DoctorDirectory interface {
	Get(ctx context.Context, doctorID string) (*doctors.Doctor, error)
	SetSlots(ctx context.Context, doctorID string, snapshot slots.Ledger, version uint64) error
}

// AppointmentStore is the slice of the appointment store the service needs.
type AppointmentStore interface {
	Create(ctx context.Context, appt *appointments.Appointment) error
	Get(ctx context.Context, appointmentID string) (*appointments.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]*appointments.Appointment, error)
	MarkCancelled(ctx context.Context, appointmentID string) error
}

// ReserveRequest names the slot a user wants to book.
type ReserveRequest struct {
	DoctorID string `json:"doctorId"`
	SlotDate string `json:"slotDate"`
	SlotTime string `json:"slotTime"`
}

// Validate checks required fields.
func (r ReserveRequest) Validate() error {
	if r.DoctorID == "" {
		return errors.New("doctorId is required")
	}
	if r.SlotDate == "" {
		return errors.New("slotDate is required")
	}
	if r.SlotTime == "" {
		return errors.New("slotTime is required")
	}
	return nil
}

// Service implements reservation and cancellation.
type Service struct {
	registry  *slots.Registry
	directory DoctorDirectory
	store     AppointmentStore
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// NewService wires the booking service.
func NewService(registry *slots.Registry, directory DoctorDirectory, store AppointmentStore, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		registry:  registry,
		directory: directory,
		store:     store,
		metrics:   m,
		logger:    logger,
	}
}

// Reserve books a slot for the user and persists the appointment with the
// doctor's fee snapshotted at booking time. The slot is committed in memory
// first; if the appointment record cannot be persisted the slot is released
// again so the failure leaves no residue.
func (s *Service) Reserve(ctx context.Context, userID string, req ReserveRequest) (*appointments.Appointment, error) {
	if userID == "" {
		return nil, errors.New("booking: userID required")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("booking: %w", err)
	}

	doc, err := s.directory.Get(ctx, req.DoctorID)
	if err != nil {
		s.metrics.ObserveReservation("doctor_not_found")
		return nil, err
	}
	if !doc.Available {
		s.metrics.ObserveReservation("doctor_unavailable")
		return nil, ErrDoctorUnavailable
	}

	s.registry.Seed(req.DoctorID, doc.Slots, doc.SlotsVersion)

	snapshot, version, err := s.registry.Reserve(req.DoctorID, req.SlotDate, req.SlotTime)
	if err != nil {
		s.metrics.ObserveReservation("conflict")
		return nil, err
	}

	if err := s.directory.SetSlots(ctx, req.DoctorID, snapshot, version); err != nil {
		s.rollbackSlot(ctx, req)
		s.metrics.ObserveReservation("persistence_failure")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	appt := &appointments.Appointment{
		ID:       uuid.NewString(),
		UserID:   userID,
		DoctorID: req.DoctorID,
		SlotDate: req.SlotDate,
		SlotTime: req.SlotTime,
		Amount:   doc.Fee,
	}
	if err := s.store.Create(ctx, appt); err != nil {
		s.rollbackSlot(ctx, req)
		s.metrics.ObserveReservation("persistence_failure")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info("slot reserved",
		"appointment_id", appt.ID,
		"doctor_id", req.DoctorID,
		"slot_date", req.SlotDate,
		"slot_time", req.SlotTime,
	)
	s.metrics.ObserveReservation("reserved")
	return appt, nil
}

// rollbackSlot releases a slot committed in memory and pushes the corrected
// snapshot back to the directory on a best-effort basis.
func (s *Service) rollbackSlot(ctx context.Context, req ReserveRequest) {
	snapshot, version := s.registry.Release(req.DoctorID, req.SlotDate, req.SlotTime)
	if err := s.directory.SetSlots(ctx, req.DoctorID, snapshot, version); err != nil {
		s.logger.Error("failed to persist slot rollback",
			"error", err,
			"doctor_id", req.DoctorID,
			"slot_date", req.SlotDate,
			"slot_time", req.SlotTime,
		)
	}
}

// Cancel marks the appointment cancelled and frees its slot. Only the owner
// may cancel; cancelling twice fails with ErrAlreadyCancelled and leaves the
// slot state untouched.
func (s *Service) Cancel(ctx context.Context, userID, appointmentID string) (*appointments.Appointment, error) {
	if userID == "" {
		return nil, errors.New("booking: userID required")
	}
	if appointmentID == "" {
		return nil, errors.New("booking: appointmentID required")
	}

	appt, err := s.store.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.UserID != userID {
		return nil, ErrForbidden
	}
	if !appt.CanCancel() {
		return nil, appointments.ErrAlreadyCancelled
	}

	// Releasing against an unseeded ledger would persist an empty snapshot
	// and wipe the doctor's other bookings, so hydrate before touching the
	// appointment record. Hydration needs the directory; if it is
	// unreachable the cancel fails now and can be retried, rather than
	// marking the appointment cancelled with the slot stuck booked forever.
	if !s.registry.Tracks(appt.DoctorID) {
		doc, derr := s.directory.Get(ctx, appt.DoctorID)
		if derr != nil {
			return nil, fmt.Errorf("%w: loading slot ledger: %v", ErrPersistence, derr)
		}
		s.registry.Seed(appt.DoctorID, doc.Slots, doc.SlotsVersion)
	}

	if err := s.store.MarkCancelled(ctx, appointmentID); err != nil {
		return nil, err
	}
	appt.Cancelled = true

	// The in-memory release always happens once the appointment is
	// cancelled; persisting the freed snapshot is best-effort because the
	// registry already reflects the truth and a later write carries it.
	snapshot, version := s.registry.Release(appt.DoctorID, appt.SlotDate, appt.SlotTime)
	if serr := s.directory.SetSlots(ctx, appt.DoctorID, snapshot, version); serr != nil {
		s.logger.Error("failed to persist freed slot after cancel",
			"error", serr,
			"appointment_id", appointmentID,
			"doctor_id", appt.DoctorID,
		)
	}

	s.logger.Info("appointment cancelled",
		"appointment_id", appointmentID,
		"doctor_id", appt.DoctorID,
	)
	return appt, nil
}

// ListForUser returns the caller's appointments.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*appointments.Appointment, error) {
	if userID == "" {
		return nil, errors.New("booking: userID required")
	}
	return s.store.ListByUser(ctx, userID)
}
