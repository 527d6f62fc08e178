package summary

import (
	"encoding/json"
	"html/template"
	"net/http"
)

var pageTemplate = template.Must(template.New("order-summary").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<main class="order-summary order-summary--{{.Status}}">
<h1>{{.Title}}</h1>
{{- if .Error}}
<p class="error">{{.Error}}</p>
{{- else}}
{{- if .Message}}
<p>{{.Message}}</p>
{{- end}}
{{- with .Details}}
<table>
<tr><th>Order Date</th><td>{{.OrderDate}}</td></tr>
<tr><th>Order Number</th><td>{{.OrderNo}}</td></tr>
<tr><th>Payment Mode</th><td>{{.PaymentMode}}</td></tr>
<tr><th>Preferred Date and Time</th><td>{{.PreferredDateTime}}</td></tr>
<tr><th>Rate</th><td>{{.Rate}}</td></tr>
<tr><th>Beneficiary Name</th><td>{{.BeneficiaryName}}</td></tr>
<tr><th>Test Details</th><td>{{.TestDetails}}</td></tr>
<tr><th>Mobile Number</th><td>{{.MobileNumber}}</td></tr>
<tr><th>Email Address</th><td>{{.EmailAddress}}</td></tr>
<tr><th>Address</th><td>{{.Address}}</td></tr>
{{- with .TSP}}
<tr><th>Collection Centre</th><td>{{.Name}} {{.Mobile}}</td></tr>
{{- end}}
</table>
<ul>
<li>You will receive an email with further information, once we assign blood collection technician.</li>
<li>Soft copy reports will be emailed to you within 48 hours of sample collection.</li>
</ul>
{{- else}}
<p class="reference">Reference ID: {{.OrderID}}</p>
<h2>What happens next?</h2>
<ul>
<li>A representative will contact you to confirm your appointment details</li>
<li>You'll receive a confirmation email with your booking details</li>
</ul>
{{- end}}
{{- end}}
</main>
</body>
</html>
`))

// Handler serves the summary as JSON and as the redirect-target page.
type Handler struct {
	viewer *Viewer
}

func NewHandler(viewer *Viewer) *Handler {
	return &Handler{viewer: viewer}
}

func statusCode(v View) int {
	switch {
	case v.Status != StatusError:
		return http.StatusOK
	case v.Error == ErrMissingOrderID:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// GetSummary handles GET /api/order-summary?orderId=.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	v := h.viewer.View(r.Context(), r.URL.Query().Get("orderId"))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(v))
	_ = json.NewEncoder(w).Encode(v)
}

// Page handles GET /order-summary?orderId=.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	v := h.viewer.View(r.Context(), r.URL.Query().Get("orderId"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode(v))
	if err := pageTemplate.Execute(w, v); err != nil {
		h.viewer.logger.Error("order summary page render failed", "error", err)
	}
}
