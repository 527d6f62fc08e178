package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wolfman30/diagnostic-booking/internal/sheets"
	"github.com/wolfman30/diagnostic-booking/internal/tasks"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

type enqueuer interface {
	Enqueue(ctx context.Context, kind tasks.Kind, payload interface{}) error
}

// Handler handles HTTP requests for callback leads
type Handler struct {
	repo   Repository
	tasks  enqueuer
	logger *logging.Logger
}

// NewHandler creates a new leads handler. queue may be nil, in which case no
// sheet row is queued.
func NewHandler(repo Repository, queue enqueuer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		tasks:  queue,
		logger: logger.WithComponent("leads"),
	}
}

// Capture stores the lead and queues its PhoneNumbers sheet row.
func (h *Handler) Capture(ctx context.Context, req *CreateCallbackRequest) (*CallbackLead, error) {
	lead, err := h.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	h.logger.Info("callback lead captured", "id", lead.ID, "phone", logging.MaskPhone(lead.Phone), "source", lead.Source)

	if h.tasks != nil {
		row := sheets.PhoneNumberRecord{PhoneNumber: lead.Phone, Source: lead.Source, Timestamp: lead.CreatedAt}.Row()
		if err := h.tasks.Enqueue(ctx, tasks.KindSheetAppend, row); err != nil {
			h.logger.Warn("callback lead sheet row not queued", "id", lead.ID, "error", err)
		}
	}
	return lead, nil
}

// CreateCallbackRequest handles POST /api/callback-requests requests
func (h *Handler) CreateCallbackRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	lead, err := h.Capture(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidPhone) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Please enter a valid 10-digit mobile number."})
			return
		}
		h.logger.Error("failed to create callback lead", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save callback request"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": lead.ID})
}

// ListCallbackLeadsResponse is the response for listing leads
type ListCallbackLeadsResponse struct {
	Leads []*CallbackLead `json:"leads"`
	Count int             `json:"count"`
	Limit int             `json:"limit"`
}

// ListCallbackRequests handles GET /admin/callback-requests requests
func (h *Handler) ListCallbackRequests(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	leads, err := h.repo.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list callback leads", "error", err)
		http.Error(w, "failed to list callback requests", http.StatusInternalServerError)
		return
	}
	if leads == nil {
		leads = []*CallbackLead{}
	}
	writeJSON(w, http.StatusOK, ListCallbackLeadsResponse{Leads: leads, Count: len(leads), Limit: limit})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
