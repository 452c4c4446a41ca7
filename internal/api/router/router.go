package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinvia/booking-platform/internal/booking"
	"github.com/clinvia/booking-platform/internal/doctors"
	httpmiddleware "github.com/clinvia/booking-platform/internal/http/middleware"
	"github.com/clinvia/booking-platform/internal/payments"
	"github.com/clinvia/booking-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	BookingHandler     *booking.Handler
	DoctorsHandler     *doctors.Handler
	PaymentsHandler    *payments.Handler
	AuthSecret         string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints (health, metrics, checkout redirect landing)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.DoctorsHandler != nil {
			public.Route("/api/doctors", func(r chi.Router) {
				r.Get("/", cfg.DoctorsHandler.ListDoctors)
				r.Get("/{doctorID}", cfg.DoctorsHandler.GetDoctor)
			})
		}
		// Hosted checkout redirects carry no bearer token, so the verify
		// landing stays public.
		if cfg.PaymentsHandler != nil {
			public.Get("/api/payments/stripe/verify", cfg.PaymentsHandler.VerifyStripeRedirect)
		}
	})

	// Caller-scoped API routes
	if cfg.AuthSecret != "" {
		r.Group(func(api chi.Router) {
			api.Use(httpmiddleware.CallerAuth(cfg.AuthSecret))

			if cfg.BookingHandler != nil {
				api.Route("/api/appointments", func(r chi.Router) {
					r.Post("/", cfg.BookingHandler.CreateAppointment)
					r.Get("/", cfg.BookingHandler.ListAppointments)
					r.Post("/{appointmentID}/cancel", cfg.BookingHandler.CancelAppointment)
				})
			}

			if cfg.PaymentsHandler != nil {
				api.Route("/api/payments", func(r chi.Router) {
					r.Post("/razorpay", cfg.PaymentsHandler.CreateRazorpayIntent)
					r.Post("/razorpay/verify", cfg.PaymentsHandler.VerifyRazorpayOrder)
					r.Post("/stripe", cfg.PaymentsHandler.CreateStripeIntent)
				})
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
