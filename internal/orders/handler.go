package orders

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/wolfman30/diagnostic-booking/internal/pincode"
	"github.com/wolfman30/diagnostic-booking/internal/validation"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// Notice is a toast shown next to the form.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

const (
	TitleIncompleteInformation = "Incomplete Information"
	TitleFixFields             = "Please check the form"
	VariantDestructive         = "destructive"
)

// NoticeFor picks the toast for a rejected form.
func NoticeFor(fe validation.FieldErrors) Notice {
	if msg, ok := fe["beneficiaries"]; ok {
		return Notice{Title: TitleIncompleteInformation, Description: msg, Variant: VariantDestructive}
	}
	return Notice{Title: TitleFixFields, Description: "Some fields need attention before submitting.", Variant: VariantDestructive}
}

// RejectedResponse is returned with 422 when validation fails.
type RejectedResponse struct {
	FieldErrors validation.FieldErrors `json:"fieldErrors"`
	Notice      Notice                 `json:"notice"`
}

// Handler exposes order submission and the submissions listing.
type Handler struct {
	submitter *Submitter
	repo      SubmissionRepository
	logger    *logging.Logger
}

func NewHandler(submitter *Submitter, repo SubmissionRepository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{submitter: submitter, repo: repo, logger: logger.WithComponent("orders")}
}

// SubmitOrder handles POST /api/orders. Serviceability is resolved by the
// submitter because a one-shot submission carries no session state.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var form Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	WriteResult(w, h.submitter.Submit(r.Context(), form, pincode.StateUnknown))
}

// WriteResult renders a submission result: 422 with field errors when the
// form was rejected, 200 otherwise.
func WriteResult(w http.ResponseWriter, res Result) {
	if !res.Accepted() {
		writeJSON(w, http.StatusUnprocessableEntity, RejectedResponse{FieldErrors: res.FieldErrors, Notice: NoticeFor(res.FieldErrors)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type listSubmissionsResponse struct {
	Submissions []Submission `json:"submissions"`
	Count       int          `json:"count"`
	Limit       int          `json:"limit"`
}

// ListSubmissions handles GET /admin/submissions?outcome=&limit=.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	outcome, err := ParseOutcome(r.URL.Query().Get("outcome"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "outcome must be confirmed or fallback"})
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	subs, err := h.repo.List(r.Context(), SubmissionFilter{Outcome: outcome, Limit: limit})
	if err != nil {
		h.logger.Error("failed to list submissions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list submissions"})
		return
	}
	if subs == nil {
		subs = []Submission{}
	}
	writeJSON(w, http.StatusOK, listSubmissionsResponse{Submissions: subs, Count: len(subs), Limit: limit})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
