// Package thyrocare is a typed client for the diagnostics provider's pincode,
// slot, order and order-summary endpoints.
package thyrocare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

const (
	defaultBaseURL      = "https://velso.thyrocare.cloud"
	defaultOrderBaseURL = "https://dx-dsa-service.thyrocare.com"
	defaultTimeout      = 15 * time.Second

	pincodePath      = "/api/TechsoApi/PincodeAvailability"
	slotsPath        = "/api/TechsoApi/GetAppointmentSlots"
	createOrderPath  = "/api/booking-master/v2/create-order"
	orderSummaryPath = "/api/OrderSummary/OrderSummary"
)

// Endpoint labels used in logs, metrics and spans.
const (
	EndpointPincode      = "pincode"
	EndpointSlots        = "slots"
	EndpointCreateOrder  = "create_order"
	EndpointOrderSummary = "order_summary"
)

var (
	// ErrDecode marks a response body that does not match the expected schema.
	ErrDecode = errors.New("thyrocare: unexpected response shape")
	// ErrStatus marks a non-2xx HTTP response.
	ErrStatus = errors.New("thyrocare: non-2xx response")
)

var tracer = otel.Tracer("booking.internal.thyrocare")

// Config configures a Client. Empty URLs fall back to the production hosts.
type Config struct {
	BaseURL       string
	OrderBaseURL  string
	APIKey        string
	PincodeAPIKey string
	Timeout       time.Duration
}

// Client wraps the provider REST calls. API keys are attached here and never
// accepted from callers.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	orderBaseURL  string
	apiKey        string
	pincodeAPIKey string
	logger        *logging.Logger
	metrics       *metrics.BookingMetrics
}

func NewClient(cfg Config, logger *logging.Logger, m *metrics.BookingMetrics) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.OrderBaseURL) == "" {
		cfg.OrderBaseURL = defaultOrderBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PincodeAPIKey == "" {
		cfg.PincodeAPIKey = cfg.APIKey
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		orderBaseURL:  strings.TrimRight(cfg.OrderBaseURL, "/"),
		apiKey:        cfg.APIKey,
		pincodeAPIKey: cfg.PincodeAPIKey,
		logger:        logger.WithComponent("thyrocare"),
		metrics:       m,
	}
}

// CheckPincode asks whether home collection is available at pincode.
func (c *Client) CheckPincode(ctx context.Context, pincode string) (*PincodeResponse, error) {
	var resp PincodeResponse
	req := pincodeRequest{APIKey: c.pincodeAPIKey, Pincode: pincode}
	if err := c.doJSON(ctx, EndpointPincode, c.baseURL+pincodePath, req, &resp); err != nil {
		return nil, fmt.Errorf("check pincode: %w", err)
	}
	return &resp, nil
}

// AppointmentSlots lists the slots for a date. A null slot list decodes as empty.
func (c *Client) AppointmentSlots(ctx context.Context, req SlotsRequest) (*SlotsResponse, error) {
	req.APIKey = c.apiKey
	var resp SlotsResponse
	if err := c.doJSON(ctx, EndpointSlots, c.baseURL+slotsPath, req, &resp); err != nil {
		return nil, fmt.Errorf("get appointment slots: %w", err)
	}
	return &resp, nil
}

// CreateOrder submits an order. A decoded response that lacks response_status
// is reported as ErrDecode; callers decide success via Succeeded.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	req.APIKey = c.apiKey
	var resp OrderResponse
	if err := c.doJSON(ctx, EndpointCreateOrder, c.orderBaseURL+createOrderPath, req, &resp); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &resp, nil
}

// OrderSummary fetches the provider's summary for an order number.
func (c *Client) OrderSummary(ctx context.Context, orderNo string) (*OrderSummaryResponse, error) {
	var resp OrderSummaryResponse
	req := orderSummaryRequest{APIKey: c.apiKey, OrderNo: orderNo}
	if err := c.doJSON(ctx, EndpointOrderSummary, c.baseURL+orderSummaryPath, req, &resp); err != nil {
		return nil, fmt.Errorf("order summary: %w", err)
	}
	return &resp, nil
}

// ForwardRaw posts body to the named endpoint with the API key merged in and
// returns the upstream JSON untouched. It backs the pass-through routes.
func (c *Client) ForwardRaw(ctx context.Context, endpoint string, body map[string]any) (json.RawMessage, error) {
	target, keyField, key := c.route(endpoint)
	if target == "" {
		return nil, fmt.Errorf("thyrocare: unknown endpoint %q", endpoint)
	}
	if body == nil {
		body = map[string]any{}
	}
	if keyField != "" {
		body[keyField] = key
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, endpoint, target, body, &raw); err != nil {
		return nil, fmt.Errorf("forward %s: %w", endpoint, err)
	}
	return raw, nil
}

func (c *Client) route(endpoint string) (target, keyField, key string) {
	switch endpoint {
	case EndpointPincode:
		return c.baseURL + pincodePath, "ApiKey", c.pincodeAPIKey
	case EndpointSlots:
		return c.baseURL + slotsPath, "ApiKey", c.apiKey
	case EndpointCreateOrder:
		return c.orderBaseURL + createOrderPath, "api_key", c.apiKey
	case EndpointOrderSummary:
		return c.baseURL + orderSummaryPath, "ApiKey", c.apiKey
	}
	return "", "", ""
}

func (c *Client) doJSON(ctx context.Context, endpoint, target string, body interface{}, out interface{}) (err error) {
	ctx, span := tracer.Start(ctx, "thyrocare."+endpoint)
	defer span.End()
	span.SetAttributes(attribute.String("booking.upstream.endpoint", endpoint))

	start := time.Now()
	result := "ok"
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		c.metrics.ObserveUpstream(endpoint, result, time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		result = "error"
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		result = "error"
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result = "transport_error"
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		result = "transport_error"
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result = "http_error"
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("thyrocare API non-2xx response", "status", resp.StatusCode, "endpoint", endpoint, "body", msg)
		return fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		result = "decode_error"
		return fmt.Errorf("%w: empty body", ErrDecode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		result = "decode_error"
		c.logger.Warn("thyrocare API response did not decode", "endpoint", endpoint, "error", err)
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if v, ok := out.(interface{ check() error }); ok {
		if err := v.check(); err != nil {
			result = "decode_error"
			return err
		}
	}
	return nil
}
