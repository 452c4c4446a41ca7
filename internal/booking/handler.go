package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinvia/booking-platform/internal/appointments"
	"github.com/clinvia/booking-platform/internal/doctors"
	"github.com/clinvia/booking-platform/internal/identity"
	"github.com/clinvia/booking-platform/internal/slots"
	"github.com/clinvia/booking-platform/pkg/logging"
)

// Handler handles HTTP requests for appointments
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new booking handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
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

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, slots.ErrSlotConflict):
		return http.StatusConflict, "slot already booked"
	case errors.Is(err, doctors.ErrDoctorNotFound):
		return http.StatusNotFound, "doctor not found"
	case errors.Is(err, ErrDoctorUnavailable):
		return http.StatusUnprocessableEntity, "doctor not available"
	case errors.Is(err, appointments.ErrNotFound):
		return http.StatusNotFound, "appointment not found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "appointment belongs to another user"
	case errors.Is(err, appointments.ErrAlreadyCancelled):
		return http.StatusConflict, "appointment already cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// CreateAppointment handles POST /api/appointments requests
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.CallerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt, err := h.service.Reserve(r.Context(), userID, req)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to reserve slot", "error", err, "user_id", userID)
		}
		writeError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appt)
}

// ListAppointmentsResponse is the response for listing a user's appointments
type ListAppointmentsResponse struct {
	Appointments []*appointments.Appointment `json:"appointments"`
	Count        int                         `json:"count"`
}

// ListAppointments handles GET /api/appointments requests
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.CallerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	appts, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}

	response := ListAppointmentsResponse{
		Appointments: appts,
		Count:        len(appts),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// CancelAppointment handles POST /api/appointments/{appointmentID}/cancel requests
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.CallerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	appointmentID := chi.URLParam(r, "appointmentID")
	if appointmentID == "" {
		writeError(w, http.StatusBadRequest, "missing appointment id")
		return
	}

	appt, err := h.service.Cancel(r.Context(), userID, appointmentID)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to cancel appointment", "error", err, "appointment_id", appointmentID)
		}
		writeError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appt)
}
