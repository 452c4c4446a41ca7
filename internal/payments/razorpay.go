package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinvia/booking-platform/pkg/logging"
)

var razorpayTracer = otel.Tracer("clinvia.internal.payments.razorpay")

// RazorpayClient talks to the Razorpay orders API. An order is created per
// appointment with the appointment ID as the receipt, so a fetched order
// always round-trips back to the appointment it settles.
type RazorpayClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRazorpayClient creates a new Razorpay orders client.
func NewRazorpayClient(keyID, keySecret string, logger *logging.Logger) *RazorpayClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &RazorpayClient{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    "https://api.razorpay.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Razorpay API base URL (for testing).
func (c *RazorpayClient) WithBaseURL(baseURL string) *RazorpayClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithTimeout overrides the HTTP client timeout.
func (c *RazorpayClient) WithTimeout(timeout time.Duration) *RazorpayClient {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// Order is the subset of a Razorpay order we need.
type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// Settled reports whether the order has been captured.
func (o *Order) Settled() bool {
	return o.Status == "paid"
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// CreateOrder creates an order carrying the appointment ID as its receipt.
// Amount is in minor currency units.
func (c *RazorpayClient) CreateOrder(ctx context.Context, appointmentID string, amountMinor int64, currency string) (*Order, error) {
	ctx, span := razorpayTracer.Start(ctx, "razorpay.create_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinvia.appointment_id", appointmentID),
		attribute.Int64("clinvia.amount_minor", amountMinor),
	)

	payload, err := json.Marshal(createOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  appointmentID,
	})
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// FetchOrder retrieves an order by ID for settlement verification.
func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := razorpayTracer.Start(ctx, "razorpay.fetch_order")
	defer span.End()
	span.SetAttributes(attribute.String("clinvia.order_id", orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	return c.do(req)
}

func (c *RazorpayClient) do(req *http.Request) (*Order, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: razorpay: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: razorpay status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payments: razorpay api status %d: %s", resp.StatusCode, string(body))
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("payments: razorpay decode: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("payments: razorpay response missing order id")
	}
	return &order, nil
}
