package appointments

import "errors"

var (
	// ErrNotFound indicates the requested appointment ID does not exist.
	ErrNotFound = errors.New("appointments: appointment not found")
	// ErrAlreadyCancelled indicates the appointment was cancelled earlier.
	ErrAlreadyCancelled = errors.New("appointments: appointment already cancelled")
	// ErrAlreadyExists indicates a record with the same ID is present.
	ErrAlreadyExists = errors.New("appointments: appointment already exists")
)
