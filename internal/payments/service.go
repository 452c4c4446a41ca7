package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/clinvia/booking-platform/internal/appointments"
	"github.com/clinvia/booking-platform/internal/observability/metrics"
	"github.com/clinvia/booking-platform/pkg/logging"
)

// minorUnitsPerMajor converts a stored fee to gateway minor units.
const minorUnitsPerMajor = 100

// OrderGateway is the Razorpay-style order API the service depends on.
type OrderGateway interface {
	CreateOrder(ctx context.Context, appointmentID string, amountMinor int64, currency string) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
}

// CheckoutGateway is the Stripe-style hosted checkout API.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error)
}

// SettlementStore is the slice of the appointment store payments needs.
type SettlementStore interface {
	Get(ctx context.Context, appointmentID string) (*appointments.Appointment, error)
	MarkPaid(ctx context.Context, appointmentID string) error
}

// Service creates payment intents against either gateway.
type Service struct {
	orders        OrderGateway
	checkout      CheckoutGateway
	store         SettlementStore
	publicBaseURL string
	currency      string
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
}

// NewService wires the payment service.
func NewService(orders OrderGateway, checkout CheckoutGateway, store SettlementStore, publicBaseURL, currency string, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		orders:        orders,
		checkout:      checkout,
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		currency:      currency,
		metrics:       m,
		logger:        logger,
	}
}

// CreateIntent starts a payment for the appointment on the named gateway.
// The fee charged is the snapshot stored on the appointment, converted to
// minor units.
func (s *Service) CreateIntent(ctx context.Context, userID, gateway, appointmentID string) (*Intent, error) {
	if appointmentID == "" {
		return nil, errors.New("payments: appointmentID required")
	}

	appt, err := s.store.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.UserID != userID {
		return nil, ErrForbidden
	}
	if !appt.CanSettle() {
		return nil, appointments.ErrAlreadyCancelled
	}
	if appt.Paid {
		return nil, ErrAlreadySettled
	}

	amountMinor := appt.Amount * minorUnitsPerMajor

	switch gateway {
	case GatewayRazorpay:
		return s.createOrderIntent(ctx, appt, amountMinor)
	case GatewayStripe:
		return s.createCheckoutIntent(ctx, appt, amountMinor)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, gateway)
	}
}

func (s *Service) createOrderIntent(ctx context.Context, appt *appointments.Appointment, amountMinor int64) (*Intent, error) {
	start := time.Now()
	order, err := s.orders.CreateOrder(ctx, appt.ID, amountMinor, s.currency)
	s.metrics.ObserveGatewayLatency(GatewayRazorpay, "create_order", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	s.logger.Info("razorpay order created",
		"appointment_id", appt.ID,
		"order_id", order.ID,
		"amount_minor", amountMinor,
	)
	return &Intent{
		Gateway:       GatewayRazorpay,
		AppointmentID: appt.ID,
		Reference:     order.ID,
		AmountMinor:   amountMinor,
		Currency:      s.currency,
	}, nil
}

func (s *Service) createCheckoutIntent(ctx context.Context, appt *appointments.Appointment, amountMinor int64) (*Intent, error) {
	start := time.Now()
	session, err := s.checkout.CreateCheckoutSession(ctx, SessionParams{
		AppointmentID: appt.ID,
		AmountMinor:   amountMinor,
		Currency:      s.currency,
		Description:   "Consultation fee",
		SuccessURL:    s.redirectURL(appt.ID, true),
		CancelURL:     s.redirectURL(appt.ID, false),
	})
	s.metrics.ObserveGatewayLatency(GatewayStripe, "create_session", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	s.logger.Info("stripe checkout session created",
		"appointment_id", appt.ID,
		"session_id", session.ID,
		"amount_minor", amountMinor,
	)
	return &Intent{
		Gateway:       GatewayStripe,
		AppointmentID: appt.ID,
		Reference:     session.ID,
		RedirectURL:   session.URL,
		AmountMinor:   amountMinor,
		Currency:      s.currency,
	}, nil
}

// redirectURL builds the verify URL the checkout redirects back to, tagged
// with the appointment and whether the user completed payment.
func (s *Service) redirectURL(appointmentID string, success bool) string {
	q := url.Values{}
	q.Set("appointmentId", appointmentID)
	if success {
		q.Set("success", "true")
	} else {
		q.Set("success", "false")
	}
	return s.publicBaseURL + "/api/payments/stripe/verify?" + q.Encode()
}
