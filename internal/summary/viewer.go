// Package summary renders the order-summary page customers land on after
// submitting a booking.
package summary

import (
	"context"
	"strings"

	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// Status is the terminal state of a summary view.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusError      Status = "error"
)

const (
	ErrMissingOrderID = "Order ID not provided"
	ErrFetchFailed    = "Error fetching order summary. Please try again later."

	TitleProcessing = "Order Added Successfully"
	TitleConfirmed  = "Booking Confirmed"
	TitleError      = "Error"

	MessageProcessing = "Thank you for your booking request. Your order is being processed and you will be contacted soon by our customer service team."
	MessageConfirmed  = "You have successfully booked your test(s)"

	notScheduled = "Not scheduled"
)

// TSPContact is the collection centre assigned to the order.
type TSPContact struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Details are the confirmed-order fields shown on the page.
type Details struct {
	OrderNo           string      `json:"orderNo"`
	OrderDate         string      `json:"orderDate"`
	PaymentMode       string      `json:"paymentMode"`
	PreferredDateTime string      `json:"preferredDateTime"`
	Rate              string      `json:"rate"`
	BeneficiaryName   string      `json:"beneficiaryName"`
	TestDetails       string      `json:"testDetails"`
	MobileNumber      string      `json:"mobileNumber"`
	EmailAddress      string      `json:"emailAddress"`
	Address           string      `json:"address"`
	TSP               *TSPContact `json:"tsp,omitempty"`
}

// View is what the page shows for one order id.
type View struct {
	OrderID string   `json:"orderId,omitempty"`
	Status  Status   `json:"status"`
	Title   string   `json:"title"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Details *Details `json:"details,omitempty"`
}

// Fetcher reads an order back from the provider.
type Fetcher interface {
	OrderSummary(ctx context.Context, orderNo string) (*thyrocare.OrderSummaryResponse, error)
}

// Viewer resolves an order id into a View.
type Viewer struct {
	fetcher Fetcher
	logger  *logging.Logger
}

func NewViewer(fetcher Fetcher, logger *logging.Logger) *Viewer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Viewer{fetcher: fetcher, logger: logger.WithComponent("summary")}
}

// View fetches the summary once. Synthetic fallback references are unknown
// upstream and come back empty, so they render as processing.
func (v *Viewer) View(ctx context.Context, orderID string) View {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return View{Status: StatusError, Title: TitleError, Error: ErrMissingOrderID}
	}

	resp, err := v.fetcher.OrderSummary(ctx, orderID)
	if err != nil {
		v.logger.Warn("order summary fetch failed", "order_id", orderID, "error", err)
		return View{OrderID: orderID, Status: StatusError, Title: TitleError, Error: ErrFetchFailed}
	}
	if resp.Processing() {
		return View{OrderID: orderID, Status: StatusProcessing, Title: TitleProcessing, Message: MessageProcessing}
	}
	return View{
		OrderID: orderID,
		Status:  StatusConfirmed,
		Title:   TitleConfirmed,
		Message: MessageConfirmed,
		Details: detailsFrom(resp),
	}
}

func detailsFrom(resp *thyrocare.OrderSummaryResponse) *Details {
	m := resp.OrderMaster[0]
	d := &Details{
		OrderNo:           m.OrderNo,
		OrderDate:         resp.BookedOn(),
		PaymentMode:       m.PayType,
		PreferredDateTime: resp.AppointedOn(),
		Rate:              m.Rate.String(),
		BeneficiaryName:   m.Names,
		TestDetails:       m.Products,
		MobileNumber:      m.Mobile,
		EmailAddress:      m.Email,
		Address:           m.Address,
	}
	if d.PreferredDateTime == "" {
		d.PreferredDateTime = notScheduled
	}
	if len(resp.BenMaster) > 0 {
		ben := resp.BenMaster[0]
		if name := strings.TrimSpace(ben.Name); name != "" {
			d.BeneficiaryName = name
		}
		if mobile := strings.TrimSpace(ben.Mobile); mobile != "" {
			d.MobileNumber = mobile
		}
	}
	if len(resp.TSPMaster) > 0 && strings.TrimSpace(resp.TSPMaster[0].TSP) != "" {
		tsp := resp.TSPMaster[0]
		d.TSP = &TSPContact{Name: tsp.TSP, Mobile: tsp.Mobile, Email: tsp.Email}
	}
	return d
}
