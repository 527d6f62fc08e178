package booking

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/diagnostic-booking/internal/beneficiary"
	"github.com/wolfman30/diagnostic-booking/internal/orders"
	"github.com/wolfman30/diagnostic-booking/internal/slots"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// Response wraps the session with any notices raised by the action.
type Response struct {
	Session *Session       `json:"session"`
	Notices []Notice       `json:"notices"`
	Result  *orders.Result `json:"result,omitempty"`
}

// Handler exposes the session workflow under /api/bookings.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger.WithComponent("booking")}
}

// Routes returns the router to mount at /api/bookings.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Put("/pincode", h.verifyPincode)
		r.Post("/beneficiaries", h.addBeneficiary)
		r.Put("/beneficiaries/{benID}", h.editBeneficiary)
		r.Delete("/beneficiaries/{benID}", h.removeBeneficiary)
		r.Post("/date", h.selectDate)
		r.Post("/submit", h.submit)
	})
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Create(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, sess, nil)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, sess, nil)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var p FormPatch
	if !decode(w, r, &p) {
		return
	}
	sess, err := h.service.Update(r.Context(), chi.URLParam(r, "sessionID"), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, sess, nil)
}

func (h *Handler) verifyPincode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pincode string `json:"pincode"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess, notices, err := h.service.VerifyPincode(r.Context(), chi.URLParam(r, "sessionID"), body.Pincode)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, sess, notices)
}

func (h *Handler) addBeneficiary(w http.ResponseWriter, r *http.Request) {
	var b beneficiary.Beneficiary
	if !decode(w, r, &b) {
		return
	}
	sess, _, err := h.service.AddBeneficiary(r.Context(), chi.URLParam(r, "sessionID"), b)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, sess, nil)
}

func (h *Handler) editBeneficiary(w http.ResponseWriter, r *http.Request) {
	var p beneficiary.Patch
	if !decode(w, r, &p) {
		return
	}
	sess, err := h.service.EditBeneficiary(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "benID"), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, sess, nil)
}

func (h *Handler) removeBeneficiary(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.RemoveBeneficiary(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "benID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, sess, nil)
}

func (h *Handler) selectDate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess, notices, err := h.service.SelectDate(r.Context(), chi.URLParam(r, "sessionID"), body.Date)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, sess, notices)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	sess, res, err := h.service.Submit(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	status := http.StatusOK
	var notices []Notice
	if !res.Accepted() {
		status = http.StatusUnprocessableEntity
		n := orders.NoticeFor(res.FieldErrors)
		notices = append(notices, Notice{Level: LevelError, Title: n.Title, Description: n.Description})
	}
	if notices == nil {
		notices = []Notice{}
	}
	writeJSON(w, status, Response{Session: sess, Notices: notices, Result: &res})
}

// fail maps service errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Booking session not found"})
	case errors.Is(err, beneficiary.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Beneficiary not found"})
	case errors.Is(err, beneficiary.ErrCapacityReached):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "All beneficiaries for this quantity are already added"})
	case errors.Is(err, beneficiary.ErrInvalidQuantity):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": orders.MsgQuantityInvalid})
	case errors.Is(err, slots.ErrInvalidDate):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": orders.MsgDateInvalid})
	case errors.Is(err, ErrPackageRequired):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": orders.MsgPackageRequired})
	case errors.Is(err, ErrSlotNotAvailable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Selected slot is no longer available"})
	default:
		h.logger.Error("booking request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Something went wrong"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Request body required"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, sess *Session, notices []Notice) {
	if notices == nil {
		notices = []Notice{}
	}
	writeJSON(w, status, Response{Session: sess, Notices: notices})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
