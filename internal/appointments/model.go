// Package appointments persists appointment records and enforces their
// lifecycle: an appointment is created active and unpaid, may be cancelled
// exactly once, and may be marked paid exactly once. Both flags only ever
// move from false to true.
package appointments

// Appointment is the persisted record of a reserved slot.
type Appointment struct {
	ID        string `dynamodbav:"appointmentId" json:"appointmentId"`
	UserID    string `dynamodbav:"userId" json:"userId"`
	DoctorID  string `dynamodbav:"doctorId" json:"doctorId"`
	SlotDate  string `dynamodbav:"slotDate" json:"slotDate"`
	SlotTime  string `dynamodbav:"slotTime" json:"slotTime"`
	Amount    int64  `dynamodbav:"amount" json:"amount"`
	Cancelled bool   `dynamodbav:"cancelled" json:"cancelled"`
	Paid      bool   `dynamodbav:"payment" json:"payment"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt" json:"updatedAt"`
}

// CanCancel reports whether the appointment is still active.
func (a *Appointment) CanCancel() bool {
	return !a.Cancelled
}

// CanSettle reports whether a payment may still be applied.
func (a *Appointment) CanSettle() bool {
	return !a.Cancelled
}
