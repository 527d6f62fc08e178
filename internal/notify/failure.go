package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

const (
	defaultFailureSubject = "Booking Form Error - Order Failed"

	// FailureCategory tags order failure emails at the provider.
	FailureCategory = "booking-form-error"
)

// OrderDetails identifies the booking an error email is about.
type OrderDetails struct {
	RefOrderID string `json:"refOrderId,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	Package    string `json:"package"`
	Pincode    string `json:"pincode"`
}

// FailureReport is the body of a "Booking Form Error" email.
type FailureReport struct {
	Subject      string       `json:"subject"`
	ErrorMessage string       `json:"errorMessage"`
	OrderDetails OrderDetails `json:"orderDetails"`
}

// FailureNotifier emails operators about bookings that fell back to manual
// processing.
type FailureNotifier struct {
	sender EmailSender
	to     []string
	logger *logging.Logger
}

// NewFailureNotifier sends to a comma separated recipient list.
func NewFailureNotifier(sender EmailSender, to string, logger *logging.Logger) *FailureNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return &FailureNotifier{sender: sender, to: recipients, logger: logger.WithComponent("notify")}
}

// NotifyOrderFailure sends the report to every recipient. With no recipients
// configured the report is only logged.
func (n *FailureNotifier) NotifyOrderFailure(ctx context.Context, report FailureReport) error {
	if len(n.to) == 0 {
		n.logger.Warn("order failure email skipped, no recipients configured", "ref_order_id", report.OrderDetails.RefOrderID)
		return nil
	}
	subject, text, htmlBody := RenderFailureEmail(report)
	var errs []string
	for _, recipient := range n.to {
		msg := EmailMessage{To: recipient, Subject: subject, Body: text, HTML: htmlBody, Category: FailureCategory}
		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Error("notify: failed to send failure email", "error", err, "to", recipient)
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: failure email: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RenderFailureEmail returns the subject, plain text and HTML bodies.
func RenderFailureEmail(r FailureReport) (subject, text, htmlBody string) {
	subject = strings.TrimSpace(r.Subject)
	if subject == "" {
		subject = defaultFailureSubject
	}
	d := r.OrderDetails
	text = fmt.Sprintf(`Booking Form Error

Error Message: %s

Order Details:
- Reference: %s
- Name: %s
- Email: %s
- Mobile: %s
- Package: %s
- Pincode: %s

This order has been logged to the FailedOrders Sheet for manual processing.`,
		r.ErrorMessage, d.RefOrderID, d.Name, d.Email, d.Mobile, d.Package, d.Pincode)

	e := html.EscapeString
	htmlBody = fmt.Sprintf(`<h1>Booking Form Error</h1>
<p><strong>Error Message:</strong> %s</p>
<h2>Order Details:</h2>
<ul>
  <li><strong>Reference:</strong> %s</li>
  <li><strong>Name:</strong> %s</li>
  <li><strong>Email:</strong> %s</li>
  <li><strong>Mobile:</strong> %s</li>
  <li><strong>Package:</strong> %s</li>
  <li><strong>Pincode:</strong> %s</li>
</ul>
<p>This order has been logged to the FailedOrders Sheet for manual processing.</p>`,
		e(r.ErrorMessage), e(d.RefOrderID), e(d.Name), e(d.Email), e(d.Mobile), e(d.Package), e(d.Pincode))
	return subject, text, htmlBody
}
