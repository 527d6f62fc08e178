// Package proxy serves the browser-facing pass-through routes. The provider
// API keys are attached server side and never accepted from the client.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/diagnostic-booking/internal/leads"
	"github.com/wolfman30/diagnostic-booking/internal/notify"
	"github.com/wolfman30/diagnostic-booking/internal/sheets"
	"github.com/wolfman30/diagnostic-booking/internal/tasks"
	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// Error bodies returned when the upstream call fails.
const (
	ErrValidatePincode = "Failed to validate pincode"
	ErrFetchSlots      = "Failed to fetch appointment slots"
	ErrCreateOrder     = "Failed to create order"
	ErrOrderSummary    = "Failed to fetch order summary"
	ErrLogToSheets     = "Failed to log order to Google Sheets"
	ErrSendEmail       = "Failed to send email"
)

// Forwarder relays a JSON body to a provider endpoint.
type Forwarder interface {
	ForwardRaw(ctx context.Context, endpoint string, body map[string]any) (json.RawMessage, error)
}

// LeadCapturer stores a callback lead.
type LeadCapturer interface {
	Capture(ctx context.Context, req *leads.CreateCallbackRequest) (*leads.CallbackLead, error)
}

// Enqueuer queues a best-effort side effect.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind tasks.Kind, payload interface{}) error
}

// FailureNotifier sends the booking error email.
type FailureNotifier interface {
	NotifyOrderFailure(ctx context.Context, report notify.FailureReport) error
}

type Handler struct {
	upstream Forwarder
	leads    LeadCapturer
	queue    Enqueuer
	notifier FailureNotifier
	logger   *logging.Logger
}

// NewHandler wires the pass-through routes. leads, queue and notifier may be
// nil; the routes that need them then answer 500.
func NewHandler(upstream Forwarder, capturer LeadCapturer, queue Enqueuer, notifier FailureNotifier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		upstream: upstream,
		leads:    capturer,
		queue:    queue,
		notifier: notifier,
		logger:   logger.WithComponent("proxy"),
	}
}

// Register adds the routes to an /api router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/validate-pincode", h.ValidatePincode)
	r.Post("/get-appointment-slots", h.AppointmentSlots)
	r.Post("/create-order", h.CreateOrder)
	r.Post("/order-summary", h.OrderSummary)
	r.Post("/log-to-sheets", h.LogToSheets)
	r.Post("/send-error-email", h.SendErrorEmail)
}

type pincodeBody struct {
	Pincode string `json:"pincode"`
}

func (h *Handler) ValidatePincode(w http.ResponseWriter, r *http.Request) {
	var body pincodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusInternalServerError, ErrValidatePincode)
		return
	}
	h.forward(w, r, thyrocare.EndpointPincode, map[string]any{"Pincode": strings.TrimSpace(body.Pincode)}, ErrValidatePincode)
}

type slotsBody struct {
	Date        string          `json:"date"`
	Pincode     string          `json:"pincode"`
	StrProducts string          `json:"strproducts"`
	BenCount    json.RawMessage `json:"benCount"`
	Patients    json.RawMessage `json:"patients"`
	Items       json.RawMessage `json:"items"`
}

func (h *Handler) AppointmentSlots(w http.ResponseWriter, r *http.Request) {
	var body slotsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusInternalServerError, ErrFetchSlots)
		return
	}
	h.forward(w, r, thyrocare.EndpointSlots, map[string]any{
		"Date":        body.Date,
		"Pincode":     body.Pincode,
		"strproducts": body.StrProducts,
		"BenCount":    rawOrNil(body.BenCount),
		"Patients":    rawOrNil(body.Patients),
		"Items":       rawOrNil(body.Items),
	}, ErrFetchSlots)
}

// CreateOrder relays the order payload untouched apart from the key.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCreateOrder)
		return
	}
	h.forward(w, r, thyrocare.EndpointCreateOrder, body, ErrCreateOrder)
}

type summaryBody struct {
	OrderID string `json:"orderId"`
}

func (h *Handler) OrderSummary(w http.ResponseWriter, r *http.Request) {
	var body summaryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusInternalServerError, ErrOrderSummary)
		return
	}
	h.forward(w, r, thyrocare.EndpointOrderSummary, map[string]any{"OrderNo": body.OrderID}, ErrOrderSummary)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, endpoint string, body map[string]any, failure string) {
	raw, err := h.upstream.ForwardRaw(r.Context(), endpoint, body)
	if err != nil {
		h.logger.Error("upstream call failed", "endpoint", endpoint, "error", err)
		writeError(w, http.StatusInternalServerError, failure)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// LogToSheets takes a flat {"sheetName": ..., field: value} row. PhoneNumbers
// rows are stored as callback leads first; every other row is queued for the
// spreadsheet.
func (h *Handler) LogToSheets(w http.ResponseWriter, r *http.Request) {
	var row sheets.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		h.logger.Warn("log-to-sheets body rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
		return
	}

	if row.Sheet == sheets.SheetPhoneNumbers {
		h.capturePhone(w, r, row)
		return
	}

	if h.queue == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": ErrLogToSheets})
		return
	}
	if err := h.queue.Enqueue(r.Context(), tasks.KindSheetAppend, row); err != nil {
		h.logger.Error("sheet row not queued", "sheet", row.Sheet, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": ErrLogToSheets})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) capturePhone(w http.ResponseWriter, r *http.Request, row sheets.Row) {
	if h.leads == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": ErrLogToSheets})
		return
	}
	req := &leads.CreateCallbackRequest{PhoneNumber: row.Fields["phoneNumber"], Source: row.Fields["source"]}
	if _, err := h.leads.Capture(r.Context(), req); err != nil {
		if errors.Is(err, leads.ErrInvalidPhone) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"success": false, "error": "Please enter a valid 10-digit mobile number."})
			return
		}
		h.logger.Error("callback lead not stored", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": ErrLogToSheets})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SendErrorEmail sends the "Booking Form Error" email synchronously.
func (h *Handler) SendErrorEmail(w http.ResponseWriter, r *http.Request) {
	var report notify.FailureReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": ErrSendEmail})
		return
	}
	if h.notifier == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": ErrSendEmail})
		return
	}
	if err := h.notifier.NotifyOrderFailure(r.Context(), report); err != nil {
		h.logger.Error("error email not sent", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": ErrSendEmail})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
