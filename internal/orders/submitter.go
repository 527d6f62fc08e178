package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/diagnostic-booking/internal/archive"
	"github.com/wolfman30/diagnostic-booking/internal/consent"
	"github.com/wolfman30/diagnostic-booking/internal/notify"
	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/internal/pincode"
	"github.com/wolfman30/diagnostic-booking/internal/sheets"
	"github.com/wolfman30/diagnostic-booking/internal/tasks"
	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
	"github.com/wolfman30/diagnostic-booking/internal/validation"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

var submitTracer = otel.Tracer("diagnostic_booking.internal.orders")

// MessageSubmitted is shown for every accepted submission, placed or not.
const MessageSubmitted = "Booking Submitted"

const summaryPath = "/order-summary"

// Reasons recorded when an order falls back to manual processing.
const (
	ReasonPincodeNotServiceable = "pincode not serviceable"
	ReasonProviderRejected      = "order rejected by provider"
	ReasonUnexpected            = "unexpected error during submission"
)

// State is a step of the submission state machine.
type State string

const (
	StateIdle           State = "idle"
	StateValidating     State = "validating"
	StateSubmitting     State = "submitting"
	StateConfirmed      State = "confirmed"
	StateLoggedFallback State = "logged_fallback"
	StateRedirected     State = "redirected"
)

// Result is what the customer sees after pressing submit. Outcome and Reason
// stay server side so a fallback looks the same as a confirmed order.
type Result struct {
	Message     string                 `json:"message,omitempty"`
	OrderID     string                 `json:"orderId,omitempty"`
	RedirectURL string                 `json:"redirectUrl,omitempty"`
	FieldErrors validation.FieldErrors `json:"fieldErrors,omitempty"`
	States      []State                `json:"-"`
	Outcome     Outcome                `json:"-"`
	Reason      string                 `json:"-"`
}

// Accepted reports whether the form passed validation.
func (r Result) Accepted() bool {
	return r.FieldErrors.Empty()
}

// SummaryURL is the redirect target for an order id.
func SummaryURL(orderID string) string {
	return summaryPath + "?orderId=" + url.QueryEscape(orderID)
}

// Provider places orders and reads them back.
type Provider interface {
	CreateOrder(ctx context.Context, req thyrocare.OrderRequest) (*thyrocare.OrderResponse, error)
	OrderSummary(ctx context.Context, orderNo string) (*thyrocare.OrderSummaryResponse, error)
}

// Enqueuer hands side effects to the task queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind tasks.Kind, payload interface{}) error
}

// ConsentRecorder stores the contact authorisation.
type ConsentRecorder interface {
	Record(ctx context.Context, ev consent.Event) error
}

// PincodeVerifier resolves serviceability when the caller has not.
type PincodeVerifier interface {
	Verify(ctx context.Context, raw string) pincode.Result
}

// Submitter runs the submission state machine.
type Submitter struct {
	provider Provider
	queue    Enqueuer
	repo     SubmissionRepository
	consent  ConsentRecorder
	pincodes PincodeVerifier
	rules    Rules
	source   string
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

func NewSubmitter(provider Provider, queue Enqueuer, repo SubmissionRepository, logger *logging.Logger) *Submitter {
	if logger == nil {
		logger = logging.Default()
	}
	if repo == nil {
		repo = NewMemorySubmissionRepository()
	}
	return &Submitter{
		provider: provider,
		queue:    queue,
		repo:     repo,
		rules:    Rules{AddressMinLength: validation.DefaultAddressMinLength},
		logger:   logger.WithComponent("orders"),
		now:      time.Now,
	}
}

func (s *Submitter) WithRules(r Rules) *Submitter {
	s.rules = r
	return s
}

func (s *Submitter) WithSource(source string) *Submitter {
	s.source = source
	return s
}

func (s *Submitter) WithConsent(c ConsentRecorder) *Submitter {
	s.consent = c
	return s
}

func (s *Submitter) WithPincodeVerifier(v PincodeVerifier) *Submitter {
	s.pincodes = v
	return s
}

func (s *Submitter) WithMetrics(m *metrics.BookingMetrics) *Submitter {
	s.metrics = m
	return s
}

func (s *Submitter) WithClock(now func() time.Time) *Submitter {
	if now != nil {
		s.now = now
	}
	return s
}

// Rules returns the validation rules in effect.
func (s *Submitter) Rules() Rules {
	return s.rules
}

// Submit validates the form and, when it passes, places the order. An
// accepted form always ends Redirected with MessageSubmitted: provider
// failures, an unserviceable pincode and panics all land in LoggedFallback
// and are recorded for manual follow-up.
func (s *Submitter) Submit(ctx context.Context, form Form, pin pincode.State) (res Result) {
	res.States = []State{StateIdle, StateValidating}
	if fe := ValidateForm(form, s.rules); !fe.Empty() {
		res.FieldErrors = fe
		res.States = append(res.States, StateIdle)
		s.metrics.ObserveSubmission("rejected")
		return res
	}
	res.States = append(res.States, StateSubmitting)

	now := s.now().UTC()
	ref := NewRefOrderID(now)

	ctx, span := submitTracer.Start(ctx, "orders.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.ref_order_id", ref),
		attribute.Int("booking.quantity", form.Quantity),
	)

	var (
		payload thyrocare.OrderRequest
		prog    progress
	)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("order submission panicked", "ref_order_id", ref, "order_no", prog.orderNo, "panic", r)
			span.RecordError(fmt.Errorf("panic: %v", r))
			res = s.recovered(ctx, res, form, payload, ref, &prog, now)
		}
	}()

	payload, err := BuildPayload(form, ref, s.source)
	if err != nil {
		return s.fallback(ctx, res, form, payload, ref, now, err.Error())
	}

	if pin == pincode.StateUnknown && s.pincodes != nil {
		pin = s.pincodes.Verify(ctx, form.Pincode).State
	}
	if pin == pincode.StateInvalid {
		return s.fallback(ctx, res, form, payload, ref, now, ReasonPincodeNotServiceable)
	}

	resp, err := s.placeOrder(ctx, payload)
	if err != nil {
		span.RecordError(err)
		return s.fallback(ctx, res, form, payload, ref, now, err.Error())
	}
	if !resp.Succeeded() {
		reason := ReasonProviderRejected
		if msg := strings.TrimSpace(resp.Message); msg != "" {
			reason += ": " + msg
		}
		return s.fallback(ctx, res, form, payload, ref, now, reason)
	}
	prog.orderNo = resp.OrderNo.String()
	return s.confirm(ctx, res, form, payload, &prog, now)
}

// progress tracks how far a confirmed order got so a recovered panic does not
// repeat or skip its side effects.
type progress struct {
	orderNo     string
	sheetQueued bool
	recorded    bool
}

// recovered settles a submission that panicked. An order the provider already
// accepted stays confirmed under its real number; anything else is logged as
// a fallback.
func (s *Submitter) recovered(ctx context.Context, res Result, form Form, payload thyrocare.OrderRequest, ref string, prog *progress, now time.Time) Result {
	if prog.orderNo != "" {
		if !prog.sheetQueued {
			s.guard("sheet row", ref, func() {
				s.enqueue(ctx, tasks.KindSheetAppend, orderRecord(payload, prog.orderNo, nil, now).Row())
			})
		}
		if !prog.recorded {
			s.guard("record", ref, func() {
				s.record(ctx, form, payload, ref, prog.orderNo, OutcomeConfirmed, "", now)
			})
			s.metrics.ObserveSubmission(string(OutcomeConfirmed))
		}
		return confirmedResult(res, prog.orderNo)
	}

	out := Result{
		Message:     MessageSubmitted,
		OrderID:     ref,
		RedirectURL: SummaryURL(ref),
		States:      append(res.States, StateLoggedFallback, StateRedirected),
		Outcome:     OutcomeFallback,
		Reason:      ReasonUnexpected,
	}
	ok := s.guard("fallback", ref, func() {
		out = s.fallback(ctx, res, form, payload, ref, now, ReasonUnexpected)
	})
	if !ok {
		s.metrics.ObserveSubmission(string(OutcomeFallback))
	}
	return out
}

// guard runs one best-effort step, turning a panic into a log line.
func (s *Submitter) guard(step, ref string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("submission step panicked", "step", step, "ref_order_id", ref, "panic", r)
			ok = false
		}
	}()
	fn()
	return true
}

// placeOrder turns a provider panic into an error.
func (s *Submitter) placeOrder(ctx context.Context, payload thyrocare.OrderRequest) (resp *thyrocare.OrderResponse, err error) {
	if s.provider == nil {
		return nil, fmt.Errorf("orders: provider not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("orders: provider panicked: %v", r)
		}
	}()
	resp, err = s.provider.CreateOrder(ctx, payload)
	if err == nil && resp == nil {
		err = fmt.Errorf("orders: empty provider response")
	}
	return resp, err
}

func (s *Submitter) confirm(ctx context.Context, res Result, form Form, payload thyrocare.OrderRequest, prog *progress, now time.Time) Result {
	orderNo := prog.orderNo
	res.States = append(res.States, StateConfirmed)
	s.logger.Info("order confirmed", "ref_order_id", payload.RefOrderID, "order_no", orderNo)

	var summary *thyrocare.OrderSummaryResponse
	s.guard("order summary", payload.RefOrderID, func() {
		sum, err := s.provider.OrderSummary(ctx, orderNo)
		if err != nil {
			s.logger.Warn("order summary fetch failed", "order_no", orderNo, "error", err)
			return
		}
		summary = sum
	})
	s.enqueue(ctx, tasks.KindSheetAppend, orderRecord(payload, orderNo, summary, now).Row())
	prog.sheetQueued = true

	s.record(ctx, form, payload, payload.RefOrderID, orderNo, OutcomeConfirmed, "", now)
	prog.recorded = true
	s.metrics.ObserveSubmission(string(OutcomeConfirmed))

	return confirmedResult(res, orderNo)
}

func confirmedResult(res Result, orderNo string) Result {
	if n := len(res.States); n == 0 || res.States[n-1] != StateConfirmed {
		res.States = append(res.States, StateConfirmed)
	}
	res.States = append(res.States, StateRedirected)
	res.Message = MessageSubmitted
	res.OrderID = orderNo
	res.RedirectURL = SummaryURL(orderNo)
	res.Outcome = OutcomeConfirmed
	res.Reason = ""
	return res
}

func (s *Submitter) fallback(ctx context.Context, res Result, form Form, payload thyrocare.OrderRequest, ref string, now time.Time, reason string) Result {
	res.States = append(res.States, StateLoggedFallback)
	s.logger.Warn("order fell back to manual processing", "ref_order_id", ref, "reason", reason,
		"mobile", logging.MaskPhone(form.Mobile))

	s.enqueue(ctx, tasks.KindSheetAppend, sheets.FailedOrderRecord{
		RefOrderID:      ref,
		Name:            form.Name,
		Email:           form.Email,
		Mobile:          form.Mobile,
		Age:             form.Age,
		Gender:          form.Gender,
		Address:         form.Address,
		Pincode:         form.Pincode,
		Package:         form.Package,
		Quantity:        form.Quantity,
		AppointmentDate: form.AppointmentDate,
		Slot:            form.Slot,
		ErrorMessage:    reason,
		Timestamp:       now,
	}.Row())
	s.enqueue(ctx, tasks.KindOrderFailureEmail, notify.FailureReport{
		ErrorMessage: reason,
		OrderDetails: notify.OrderDetails{
			RefOrderID: ref,
			Name:       form.Name,
			Email:      form.Email,
			Mobile:     form.Mobile,
			Package:    form.Package,
			Pincode:    form.Pincode,
		},
	})

	s.record(ctx, form, payload, ref, "", OutcomeFallback, reason, now)
	s.metrics.ObserveSubmission(string(OutcomeFallback))

	res.States = append(res.States, StateRedirected)
	res.Message = MessageSubmitted
	res.OrderID = ref
	res.RedirectURL = SummaryURL(ref)
	res.Outcome = OutcomeFallback
	res.Reason = reason
	return res
}

// record persists the submission, audits consent and queues the archive
// snapshot. Failures are logged and never change the outcome.
func (s *Submitter) record(ctx context.Context, form Form, payload thyrocare.OrderRequest, ref, orderNo string, outcome Outcome, reason string, now time.Time) {
	payload.APIKey = ""
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("order payload encode failed", "ref_order_id", ref, "error", err)
	}

	sub := Submission{
		ID:          uuid.NewString(),
		RefOrderID:  ref,
		OrderNo:     orderNo,
		Outcome:     outcome,
		Reason:      reason,
		Mobile:      strings.TrimSpace(form.Mobile),
		Email:       strings.TrimSpace(form.Email),
		PackageCode: payload.Product,
		Quantity:    form.Quantity,
		Rate:        payload.Rate,
		Payload:     raw,
		CreatedAt:   now,
	}
	s.guard("save submission", ref, func() {
		if err := s.repo.Save(ctx, sub); err != nil {
			s.logger.Error("submission save failed", "ref_order_id", ref, "error", err)
		}
	})

	if s.consent != nil {
		ev := consent.Event{
			RefOrderID: ref,
			Mobile:     sub.Mobile,
			Email:      sub.Email,
			Authorized: form.Authorized,
			Channels:   form.ContactPreferences.Channels(),
			Source:     s.source,
			CreatedAt:  now,
		}
		s.guard("consent audit", ref, func() {
			if err := s.consent.Record(ctx, ev); err != nil {
				s.logger.Warn("consent audit failed", "ref_order_id", ref, "error", err)
			}
		})
	}

	s.enqueue(ctx, tasks.KindArchiveOrder, archive.OrderSnapshot{
		RefOrderID:  ref,
		OrderNo:     orderNo,
		Outcome:     string(outcome),
		Reason:      reason,
		MobileHash:  archive.HashPhone(sub.Mobile),
		PackageCode: sub.PackageCode,
		Quantity:    sub.Quantity,
		Rate:        sub.Rate,
		Payload:     raw,
		SubmittedAt: now,
	})
}

func (s *Submitter) enqueue(ctx context.Context, kind tasks.Kind, payload interface{}) {
	if s.queue == nil {
		s.logger.Warn("task queue not configured, side effect dropped", "kind", kind)
		return
	}
	s.guard("enqueue "+string(kind), "", func() {
		if err := s.queue.Enqueue(ctx, kind, payload); err != nil {
			s.logger.Error("task enqueue failed", "kind", kind, "error", err)
		}
	})
}

// orderRecord prefers the provider's summary and falls back to what was sent.
func orderRecord(payload thyrocare.OrderRequest, orderNo string, summary *thyrocare.OrderSummaryResponse, now time.Time) sheets.OrderRecord {
	rec := sheets.OrderRecord{
		OrderNo:           orderNo,
		OrderDate:         now.Format("2006-01-02"),
		PaymentMode:       payload.PayType,
		PreferredDateTime: payload.ApptDate,
		Rate:              strconv.Itoa(payload.Rate),
		BeneficiaryName:   payload.OrderBy,
		TestDetails:       payload.ProductName,
		MobileNumber:      payload.Mobile,
		EmailAddress:      payload.Email,
		Address:           payload.Address,
		Timestamp:         now,
	}
	if summary.Processing() {
		return rec
	}
	m := summary.OrderMaster[0]
	if d := summary.BookedOn(); d != "" {
		rec.OrderDate = d
	}
	if d := summary.AppointedOn(); d != "" {
		rec.PreferredDateTime = d
	}
	setIf(&rec.PaymentMode, m.PayType)
	setIf(&rec.Rate, m.Rate.String())
	setIf(&rec.BeneficiaryName, m.Names)
	setIf(&rec.TestDetails, m.Products)
	setIf(&rec.MobileNumber, m.Mobile)
	setIf(&rec.EmailAddress, m.Email)
	setIf(&rec.Address, m.Address)
	return rec
}

func setIf(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
