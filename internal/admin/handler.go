// Package admin serves the operator endpoints mounted under /admin.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/diagnostic-booking/internal/consent"
	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/internal/tasks"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Requeuer puts a dead letter back on the queue.
type Requeuer func(ctx context.Context, id string) (tasks.Task, error)

// ConsentQuerier looks up consent events.
type ConsentQuerier interface {
	Query(ctx context.Context, filter consent.Filter) ([]consent.Event, error)
}

// Handler serves dead letters, consent lookups and counters.
type Handler struct {
	deadLetters tasks.DeadLetterStore
	requeue     Requeuer
	consent     ConsentQuerier
	gatherer    prometheus.Gatherer
	logger      *logging.Logger
}

func NewHandler(deadLetters tasks.DeadLetterStore, requeue Requeuer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		deadLetters: deadLetters,
		requeue:     requeue,
		logger:      logger.WithComponent("admin"),
	}
}

// WithConsent enables GET /consent-events.
func (h *Handler) WithConsent(q ConsentQuerier) *Handler {
	h.consent = q
	return h
}

// WithGatherer sets the registry the stats endpoint reads.
func (h *Handler) WithGatherer(g prometheus.Gatherer) *Handler {
	h.gatherer = g
	return h
}

// Register adds the routes to an /admin router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/dead-letters", h.ListDeadLetters)
	r.Post("/dead-letters/{id}/requeue", h.RequeueDeadLetter)
	r.Get("/stats", h.Stats)
	if h.consent != nil {
		r.Get("/consent-events", h.ListConsentEvents)
	}
}

type DeadLettersResponse struct {
	DeadLetters []tasks.DeadLetter `json:"dead_letters"`
	Count       int                `json:"count"`
	Limit       int                `json:"limit"`
}

// ListDeadLetters handles GET /admin/dead-letters?limit=
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		writeJSON(w, http.StatusOK, DeadLettersResponse{DeadLetters: []tasks.DeadLetter{}, Limit: defaultLimit})
		return
	}
	limit := parseLimit(r)
	list, err := h.deadLetters.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list dead letters", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list dead letters"})
		return
	}
	if list == nil {
		list = []tasks.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, DeadLettersResponse{DeadLetters: list, Count: len(list), Limit: limit})
}

// RequeueDeadLetter handles POST /admin/dead-letters/{id}/requeue
func (h *Handler) RequeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.requeue == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "requeue not configured"})
		return
	}
	task, err := h.requeue(r.Context(), id)
	if err != nil {
		if errors.Is(err, tasks.ErrDeadLetterNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dead letter not found"})
			return
		}
		h.logger.Error("failed to requeue dead letter", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to requeue dead letter"})
		return
	}
	h.logger.Info("dead letter requeued", "id", task.ID, "kind", task.Kind)
	writeJSON(w, http.StatusAccepted, map[string]any{"requeued": true, "id": task.ID, "kind": task.Kind})
}

// ListConsentEvents handles GET /admin/consent-events?mobile=&ref_order_id=
func (h *Handler) ListConsentEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := consent.Filter{
		Mobile:     strings.TrimSpace(q.Get("mobile")),
		RefOrderID: strings.TrimSpace(q.Get("ref_order_id")),
		Limit:      parseLimit(r),
	}
	if filter.Mobile == "" && filter.RefOrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mobile or ref_order_id required"})
		return
	}
	events, err := h.consent.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query consent events", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to query consent events"})
		return
	}
	if events == nil {
		events = []consent.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// StatsResponse summarises the process counters since start.
type StatsResponse struct {
	Submissions map[string]float64 `json:"submissions"`
	DeadLetters map[string]float64 `json:"dead_letters"`
}

// Stats handles GET /admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Submissions: metrics.CounterTotals(h.gatherer, metrics.SubmissionsMetric, "outcome"),
		DeadLetters: metrics.CounterTotals(h.gatherer, metrics.DeadLettersMetric, "kind"),
	})
}

func parseLimit(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= maxLimit {
			return n
		}
	}
	return defaultLimit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
