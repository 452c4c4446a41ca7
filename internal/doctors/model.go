// Package doctors provides the doctor directory: per-doctor profile,
// consultation fee, availability flag, and the persisted slot ledger
// snapshot that lives alongside the doctor record.
package doctors

import (
	"time"

	"github.com/clinvia/booking-platform/internal/slots"
)

// Doctor is the directory record for a bookable practitioner.
type Doctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`

	// Fee is the consultation fee in major currency units. Gateways charge
	// fee * 100 minor units.
	Fee int64 `json:"fee"`

	// Available gates new reservations; existing appointments are unaffected.
	Available bool `json:"available"`

	// Slots is the persisted booked-slot snapshot, date -> ordered times.
	// SlotsVersion records which in-memory ledger version the snapshot was
	// taken at; writes carrying an older version are dropped.
	Slots        slots.Ledger `json:"slots_booked,omitempty"`
	SlotsVersion uint64       `json:"slots_version,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
