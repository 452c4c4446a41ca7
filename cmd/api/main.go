package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinvia/booking-platform/cmd/mainconfig"
	"github.com/clinvia/booking-platform/internal/api/router"
	"github.com/clinvia/booking-platform/internal/appointments"
	"github.com/clinvia/booking-platform/internal/booking"
	appconfig "github.com/clinvia/booking-platform/internal/config"
	"github.com/clinvia/booking-platform/internal/doctors"
	"github.com/clinvia/booking-platform/internal/observability/metrics"
	"github.com/clinvia/booking-platform/internal/payments"
	"github.com/clinvia/booking-platform/internal/slots"
	"github.com/clinvia/booking-platform/pkg/logging"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Redis-backed doctor directory
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	doctorStore := doctors.NewStore(redisClient)

	if cfg.Env == "development" {
		if err := doctorStore.Seed(context.Background(),
			&doctors.Doctor{ID: "doc-demo-1", Name: "Dr. Asha Mehta", Specialty: "General physician", Fee: 500, Available: true},
			&doctors.Doctor{ID: "doc-demo-2", Name: "Dr. Vikram Rao", Specialty: "Dermatologist", Fee: 700, Available: true},
		); err != nil {
			logger.Error("failed to seed doctor directory", "error", err)
		}
	}

	// DynamoDB-backed appointment store
	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	appointmentStore := appointments.NewStore(dynamoClient, cfg.AppointmentsTable, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Core services
	slotRegistry := slots.NewRegistry()
	bookingService := booking.NewService(slotRegistry, doctorStore, appointmentStore, bookingMetrics, logger)

	razorpayClient := payments.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger).
		WithBaseURL(cfg.RazorpayBaseURL).
		WithTimeout(cfg.GatewayTimeout)
	stripeClient := payments.NewStripeClient(cfg.StripeSecretKey, logger).
		WithBaseURL(cfg.StripeBaseURL).
		WithTimeout(cfg.GatewayTimeout)
	paymentService := payments.NewService(razorpayClient, stripeClient, appointmentStore, cfg.PublicBaseURL, cfg.Currency, bookingMetrics, logger)
	reconciler := payments.NewReconciler(razorpayClient, appointmentStore, bookingMetrics, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		BookingHandler:     booking.NewHandler(bookingService, logger),
		DoctorsHandler:     doctors.NewHandler(doctorStore, logger),
		PaymentsHandler:    payments.NewHandler(paymentService, reconciler, logger),
		AuthSecret:         cfg.AuthSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
