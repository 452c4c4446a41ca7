package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinvia/booking-platform/internal/appointments"
	"github.com/clinvia/booking-platform/internal/identity"
	"github.com/clinvia/booking-platform/pkg/logging"
)

// Handler handles HTTP requests for payment intents and verification
type Handler struct {
	service    *Service
	reconciler *Reconciler
	logger     *logging.Logger
}

// NewHandler creates a new payments handler
func NewHandler(service *Service, reconciler *Reconciler, logger *logging.Logger) *Handler {
	return &Handler{
		service:    service,
		reconciler: reconciler,
		logger:     logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps payment errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "payment gateway unavailable"
	case errors.Is(err, appointments.ErrNotFound):
		return http.StatusNotFound, "appointment not found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "appointment belongs to another user"
	case errors.Is(err, appointments.ErrAlreadyCancelled):
		return http.StatusConflict, "appointment cancelled"
	case errors.Is(err, ErrAlreadySettled):
		return http.StatusConflict, "appointment already settled"
	case errors.Is(err, ErrUnknownGateway):
		return http.StatusBadRequest, "unknown payment gateway"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

type createIntentRequest struct {
	AppointmentID string `json:"appointmentId"`
}

func (h *Handler) createIntent(w http.ResponseWriter, r *http.Request, gateway string) {
	userID, ok := identity.CallerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointmentId is required")
		return
	}

	intent, err := h.service.CreateIntent(r.Context(), userID, gateway, req.AppointmentID)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to create payment intent", "error", err, "gateway", gateway, "appointment_id", req.AppointmentID)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, intent)
}

// CreateRazorpayIntent handles POST /api/payments/razorpay requests
func (h *Handler) CreateRazorpayIntent(w http.ResponseWriter, r *http.Request) {
	h.createIntent(w, r, GatewayRazorpay)
}

// CreateStripeIntent handles POST /api/payments/stripe requests
func (h *Handler) CreateStripeIntent(w http.ResponseWriter, r *http.Request) {
	h.createIntent(w, r, GatewayStripe)
}

type verifyOrderRequest struct {
	OrderID string `json:"orderId"`
}

// VerifyRazorpayOrder handles POST /api/payments/razorpay/verify requests
func (h *Handler) VerifyRazorpayOrder(w http.ResponseWriter, r *http.Request) {
	var req verifyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "orderId is required")
		return
	}

	outcome, err := h.reconciler.VerifyOrder(r.Context(), req.OrderID)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to verify order", "error", err, "order_id", req.OrderID)
		}
		writeError(w, status, msg)
		return
	}

	h.applyAndRespond(w, r, outcome)
}

// VerifyStripeRedirect handles GET /api/payments/stripe/verify requests,
// the landing endpoint hosted checkout redirects back to.
func (h *Handler) VerifyStripeRedirect(w http.ResponseWriter, r *http.Request) {
	appointmentID := r.URL.Query().Get("appointmentId")
	if appointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointmentId is required")
		return
	}

	outcome, err := h.reconciler.VerifyRedirect(appointmentID, r.URL.Query().Get("success"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.applyAndRespond(w, r, outcome)
}

func (h *Handler) applyAndRespond(w http.ResponseWriter, r *http.Request, outcome *Outcome) {
	if err := h.reconciler.Apply(r.Context(), outcome); err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to apply settlement", "error", err, "appointment_id", outcome.AppointmentID)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
