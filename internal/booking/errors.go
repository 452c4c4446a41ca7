package booking

import "errors"

var (
	// ErrDoctorUnavailable indicates the doctor is not accepting bookings.
	ErrDoctorUnavailable = errors.New("booking: doctor not available")
	// ErrForbidden indicates the caller does not own the appointment.
	ErrForbidden = errors.New("booking: appointment belongs to another user")
	// ErrPersistence indicates a reservation could not be made durable and
	// was rolled back.
	ErrPersistence = errors.New("booking: reservation could not be persisted")
)
