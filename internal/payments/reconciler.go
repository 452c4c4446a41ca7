package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinvia/booking-platform/internal/appointments"
	"github.com/clinvia/booking-platform/internal/observability/metrics"
	"github.com/clinvia/booking-platform/pkg/logging"
)

// Reconciler verifies settlements with the gateway of record and applies
// confirmed ones to the appointment store. Applying is idempotent: verifying
// the same settlement twice marks the appointment paid once and succeeds
// both times.
type Reconciler struct {
	orders  OrderGateway
	store   SettlementStore
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewReconciler wires the settlement reconciler.
func NewReconciler(orders OrderGateway, store SettlementStore, m *metrics.BookingMetrics, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		orders:  orders,
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// VerifyOrder checks an order with the gateway. The order's receipt carries
// the appointment ID, so the outcome names the appointment to settle.
func (r *Reconciler) VerifyOrder(ctx context.Context, orderID string) (*Outcome, error) {
	if orderID == "" {
		return nil, errors.New("payments: orderID required")
	}

	start := time.Now()
	order, err := r.orders.FetchOrder(ctx, orderID)
	r.metrics.ObserveGatewayLatency(GatewayRazorpay, "fetch_order", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if order.Receipt == "" {
		return nil, fmt.Errorf("payments: order %s carries no appointment receipt", orderID)
	}

	return &Outcome{
		Gateway:       GatewayRazorpay,
		AppointmentID: order.Receipt,
		Confirmed:     order.Settled(),
	}, nil
}

// VerifyRedirect interprets the query parameters a hosted checkout redirects
// back with. Only an exact "true" success flag confirms the settlement.
func (r *Reconciler) VerifyRedirect(appointmentID, success string) (*Outcome, error) {
	if appointmentID == "" {
		return nil, errors.New("payments: appointmentID required")
	}
	return &Outcome{
		Gateway:       GatewayStripe,
		AppointmentID: appointmentID,
		Confirmed:     success == "true",
	}, nil
}

// Apply records a verified settlement on the appointment. Unconfirmed
// outcomes are never applied. A settlement arriving for a cancelled
// appointment is a failure and leaves the record untouched.
func (r *Reconciler) Apply(ctx context.Context, outcome *Outcome) error {
	if outcome == nil {
		return errors.New("payments: outcome required")
	}
	if !outcome.Confirmed {
		// A failed settlement still has to name a real appointment.
		if _, err := r.store.Get(ctx, outcome.AppointmentID); err != nil {
			return err
		}
		r.metrics.ObserveSettlement(outcome.Gateway, "unconfirmed")
		r.logger.Info("settlement not confirmed",
			"gateway", outcome.Gateway,
			"appointment_id", outcome.AppointmentID,
		)
		return nil
	}

	if err := r.store.MarkPaid(ctx, outcome.AppointmentID); err != nil {
		r.metrics.ObserveSettlement(outcome.Gateway, "failed")
		if errors.Is(err, appointments.ErrAlreadyCancelled) {
			return fmt.Errorf("payments: settlement for cancelled appointment %s: %w", outcome.AppointmentID, err)
		}
		return err
	}

	outcome.Applied = true
	r.metrics.ObserveSettlement(outcome.Gateway, "applied")
	r.logger.Info("settlement applied",
		"gateway", outcome.Gateway,
		"appointment_id", outcome.AppointmentID,
	)
	return nil
}
