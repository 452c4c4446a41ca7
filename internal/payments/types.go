// Package payments settles consultation fees through two gateways: a
// Razorpay-style orders API and a Stripe-style hosted checkout. Either path
// ends in the same place, a verified settlement applied to the appointment
// record.
package payments

import "errors"

// Gateway names used in intents, metrics, and route dispatch.
const (
	GatewayRazorpay = "razorpay"
	GatewayStripe   = "stripe"
)

var (
	// ErrUnknownGateway indicates an unsupported gateway name.
	ErrUnknownGateway = errors.New("payments: unknown gateway")
	// ErrGatewayUnavailable indicates the gateway could not be reached or
	// answered with a server error.
	ErrGatewayUnavailable = errors.New("payments: gateway unavailable")
	// ErrForbidden indicates the caller does not own the appointment.
	ErrForbidden = errors.New("payments: appointment belongs to another user")
	// ErrAlreadySettled indicates the appointment is already paid.
	ErrAlreadySettled = errors.New("payments: appointment already settled")
)

// Intent is a gateway-side payment the client must complete.
type Intent struct {
	Gateway       string `json:"gateway"`
	AppointmentID string `json:"appointmentId"`
	Reference     string `json:"reference"`
	RedirectURL   string `json:"redirectUrl,omitempty"`
	AmountMinor   int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// Outcome is the result of verifying a settlement with a gateway.
type Outcome struct {
	Gateway       string `json:"gateway"`
	AppointmentID string `json:"appointmentId"`
	Confirmed     bool   `json:"confirmed"`
	Applied       bool   `json:"applied"`
}
