package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/diagnostic-booking/internal/archive"
	"github.com/wolfman30/diagnostic-booking/internal/consent"
	"github.com/wolfman30/diagnostic-booking/internal/notify"
	"github.com/wolfman30/diagnostic-booking/internal/pincode"
	"github.com/wolfman30/diagnostic-booking/internal/sheets"
	"github.com/wolfman30/diagnostic-booking/internal/tasks"
	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
)

type stubProvider struct {
	resp         *thyrocare.OrderResponse
	err          error
	panicWith    interface{}
	summary      *thyrocare.OrderSummaryResponse
	summaryErr   error
	summaryPanic interface{}

	calls    int
	lastSent thyrocare.OrderRequest
}

func (p *stubProvider) CreateOrder(_ context.Context, req thyrocare.OrderRequest) (*thyrocare.OrderResponse, error) {
	p.calls++
	p.lastSent = req
	if p.panicWith != nil {
		panic(p.panicWith)
	}
	return p.resp, p.err
}

func (p *stubProvider) OrderSummary(_ context.Context, _ string) (*thyrocare.OrderSummaryResponse, error) {
	if p.summaryPanic != nil {
		panic(p.summaryPanic)
	}
	return p.summary, p.summaryErr
}

type enqueued struct {
	kind    tasks.Kind
	payload interface{}
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	items []enqueued
	err   error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, kind tasks.Kind, payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, enqueued{kind: kind, payload: payload})
	return e.err
}

func (e *recordingEnqueuer) ofKind(kind tasks.Kind) []interface{} {
	var out []interface{}
	for _, it := range e.items {
		if it.kind == kind {
			out = append(out, it.payload)
		}
	}
	return out
}

type recordingConsent struct {
	events []consent.Event
}

func (c *recordingConsent) Record(_ context.Context, ev consent.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type stubVerifier struct {
	state pincode.State
	calls int
}

func (v *stubVerifier) Verify(_ context.Context, raw string) pincode.Result {
	v.calls++
	return pincode.Result{Pincode: raw, State: v.state}
}

type panickingVerifier struct{}

func (panickingVerifier) Verify(context.Context, string) pincode.Result {
	panic("verifier index out of range")
}

type panickingRepo struct {
	*MemorySubmissionRepository
}

func (panickingRepo) Save(context.Context, Submission) error {
	panic("repository closed")
}

type panickingEnqueuer struct{}

func (panickingEnqueuer) Enqueue(context.Context, tasks.Kind, interface{}) error {
	panic("queue closed")
}

func status(s string) *thyrocare.FlexString {
	f := thyrocare.FlexString(s)
	return &f
}

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func newTestSubmitter(p Provider) (*Submitter, *recordingEnqueuer, *MemorySubmissionRepository, *recordingConsent) {
	q := &recordingEnqueuer{}
	repo := NewMemorySubmissionRepository()
	audit := &recordingConsent{}
	s := NewSubmitter(p, q, repo, nil).
		WithConsent(audit).
		WithSource("landing-page").
		WithClock(func() time.Time { return fixedNow })
	return s, q, repo, audit
}

func TestSubmit_InvalidFormStaysIdle(t *testing.T) {
	provider := &stubProvider{}
	s, q, _, _ := newTestSubmitter(provider)

	f := validForm()
	f.Authorized = false
	res := s.Submit(context.Background(), f, pincode.StateValid)

	assert.False(t, res.Accepted())
	assert.Equal(t, MsgAuthorizationRequired, res.FieldErrors["authorized"])
	assert.Equal(t, []State{StateIdle, StateValidating, StateIdle}, res.States)
	assert.Empty(t, res.Message)
	assert.Zero(t, provider.calls)
	assert.Empty(t, q.items)
}

func TestSubmit_Confirmed(t *testing.T) {
	provider := &stubProvider{
		resp: &thyrocare.OrderResponse{ResponseStatus: status("1"), OrderNo: "VL123"},
		summary: &thyrocare.OrderSummaryResponse{
			OrderMaster: []thyrocare.OrderMaster{{OrderNo: "VL123", Names: "ASHA VERMA", Products: "COUPLE PACKAGE", PayType: "POSTPAID", Rate: "1575"}},
			LeadHistoryMaster: []thyrocare.LeadHistoryMaster{{
				BookedOn:  []thyrocare.LeadHistoryDate{{Date: "2026-10-16 09:30"}},
				AppointOn: []thyrocare.LeadHistoryDate{{Date: "2026-10-20 07:00"}},
			}},
		},
	}
	s, q, repo, audit := newTestSubmitter(provider)

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)

	require.True(t, res.Accepted())
	assert.Equal(t, MessageSubmitted, res.Message)
	assert.Equal(t, "VL123", res.OrderID)
	assert.Equal(t, "/order-summary?orderId=VL123", res.RedirectURL)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, []State{StateIdle, StateValidating, StateSubmitting, StateConfirmed, StateRedirected}, res.States)
	assert.Equal(t, NewRefOrderID(fixedNow), provider.lastSent.RefOrderID)

	rows := q.ofKind(tasks.KindSheetAppend)
	require.Len(t, rows, 1)
	row := rows[0].(sheets.Row)
	assert.Equal(t, sheets.SheetOrders, row.Sheet)
	assert.Equal(t, "VL123", row.Fields["orderNo"])
	assert.Equal(t, "2026-10-16", row.Fields["orderDate"])
	assert.Equal(t, "ASHA VERMA", row.Fields["beneficiaryName"])
	assert.Empty(t, q.ofKind(tasks.KindOrderFailureEmail))

	snaps := q.ofKind(tasks.KindArchiveOrder)
	require.Len(t, snaps, 1)
	snap := snaps[0].(archive.OrderSnapshot)
	assert.Equal(t, "confirmed", snap.Outcome)
	assert.Equal(t, archive.HashPhone("9876543210"), snap.MobileHash)

	sub, err := repo.Get(context.Background(), NewRefOrderID(fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "VL123", sub.OrderNo)
	var sent thyrocare.OrderRequest
	require.NoError(t, json.Unmarshal(sub.Payload, &sent))
	assert.Empty(t, sent.APIKey)

	require.Len(t, audit.events, 1)
	assert.True(t, audit.events[0].Authorized)
	assert.Equal(t, []string{"whatsapp", "call"}, audit.events[0].Channels)
}

func TestSubmit_SummaryFailureStillConfirms(t *testing.T) {
	provider := &stubProvider{
		resp:       &thyrocare.OrderResponse{ResponseStatus: status("1"), OrderNo: "VL124"},
		summaryErr: errors.New("timeout"),
	}
	s, q, _, _ := newTestSubmitter(provider)

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)

	row := q.ofKind(tasks.KindSheetAppend)[0].(sheets.Row)
	assert.Equal(t, "Asha Verma", row.Fields["beneficiaryName"])
	assert.Equal(t, "2026-10-20 07:00", row.Fields["preferredDateTime"])
}

func assertFallback(t *testing.T, res Result) {
	t.Helper()
	ref := NewRefOrderID(fixedNow)
	assert.Equal(t, MessageSubmitted, res.Message)
	assert.Equal(t, ref, res.OrderID)
	assert.Equal(t, "/order-summary?orderId="+ref, res.RedirectURL)
	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.Equal(t, StateLoggedFallback, res.States[len(res.States)-2])
	assert.Equal(t, StateRedirected, res.States[len(res.States)-1])
}

func TestSubmit_ProviderErrorFallsBack(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection reset")}
	s, q, repo, _ := newTestSubmitter(provider)

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)
	assertFallback(t, res)
	assert.Contains(t, res.Reason, "connection reset")

	rows := q.ofKind(tasks.KindSheetAppend)
	require.Len(t, rows, 1)
	row := rows[0].(sheets.Row)
	assert.Equal(t, sheets.SheetFailedOrders, row.Sheet)
	assert.Equal(t, "connection reset", row.Fields["errorMessage"])

	emails := q.ofKind(tasks.KindOrderFailureEmail)
	require.Len(t, emails, 1)
	report := emails[0].(notify.FailureReport)
	assert.Equal(t, res.OrderID, report.OrderDetails.RefOrderID)

	list, err := repo.List(context.Background(), SubmissionFilter{Outcome: OutcomeFallback})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "connection reset", list[0].Reason)
}

func TestSubmit_ProviderRejectionFallsBack(t *testing.T) {
	provider := &stubProvider{resp: &thyrocare.OrderResponse{ResponseStatus: status("0"), Message: "Duplicate order"}}
	s, _, _, _ := newTestSubmitter(provider)

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)
	assertFallback(t, res)
	assert.Equal(t, ReasonProviderRejected+": Duplicate order", res.Reason)
}

func TestSubmit_InvalidPincodeSkipsProvider(t *testing.T) {
	provider := &stubProvider{}
	s, _, _, _ := newTestSubmitter(provider)

	res := s.Submit(context.Background(), validForm(), pincode.StateInvalid)
	assertFallback(t, res)
	assert.Equal(t, ReasonPincodeNotServiceable, res.Reason)
	assert.Zero(t, provider.calls)
}

func TestSubmit_UnknownPincodeIsVerified(t *testing.T) {
	provider := &stubProvider{}
	verifier := &stubVerifier{state: pincode.StateInvalid}
	s, _, _, _ := newTestSubmitter(provider)
	s.WithPincodeVerifier(verifier)

	res := s.Submit(context.Background(), validForm(), pincode.StateUnknown)
	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, ReasonPincodeNotServiceable, res.Reason)
	assert.Zero(t, provider.calls)
}

func TestSubmit_ProviderPanicFallsBack(t *testing.T) {
	provider := &stubProvider{panicWith: "nil map write"}
	s, q, _, _ := newTestSubmitter(provider)

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)
	assertFallback(t, res)
	assert.Contains(t, res.Reason, "panicked")
	assert.Len(t, q.ofKind(tasks.KindOrderFailureEmail), 1)
}

func TestSubmit_VerifierPanicIsLoggedAsFallback(t *testing.T) {
	provider := &stubProvider{resp: &thyrocare.OrderResponse{ResponseStatus: status("true"), OrderNo: "VL1"}}
	s, q, repo, _ := newTestSubmitter(provider)
	s.WithPincodeVerifier(panickingVerifier{})

	res := s.Submit(context.Background(), validForm(), pincode.StateUnknown)
	assertFallback(t, res)
	assert.Equal(t, ReasonUnexpected, res.Reason)
	assert.Zero(t, provider.calls)

	rows := q.ofKind(tasks.KindSheetAppend)
	require.Len(t, rows, 1)
	assert.Equal(t, sheets.SheetFailedOrders, rows[0].(sheets.Row).Sheet)
	assert.Equal(t, ReasonUnexpected, rows[0].(sheets.Row).Fields["errorMessage"])
	assert.Len(t, q.ofKind(tasks.KindOrderFailureEmail), 1)

	saved, err := repo.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallback, saved.Outcome)
}

func TestSubmit_SummaryPanicKeepsConfirmedOrder(t *testing.T) {
	provider := &stubProvider{
		resp:         &thyrocare.OrderResponse{ResponseStatus: status("true"), OrderNo: "VL123"},
		summaryPanic: "nil summary",
	}
	s, q, repo, _ := newTestSubmitter(provider)

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, "VL123", res.OrderID)
	assert.Equal(t, SummaryURL("VL123"), res.RedirectURL)
	assert.Equal(t, 1, provider.calls)

	rows := q.ofKind(tasks.KindSheetAppend)
	require.Len(t, rows, 1)
	row := rows[0].(sheets.Row)
	assert.Equal(t, sheets.SheetOrders, row.Sheet)
	assert.Equal(t, "VL123", row.Fields["orderNo"])
	assert.Empty(t, q.ofKind(tasks.KindOrderFailureEmail))

	saved, err := repo.Get(context.Background(), NewRefOrderID(fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "VL123", saved.OrderNo)
	assert.Equal(t, OutcomeConfirmed, saved.Outcome)
}

func TestRecoveredAfterProviderAcceptedOrder(t *testing.T) {
	s, q, repo, _ := newTestSubmitter(&stubProvider{})
	ref := NewRefOrderID(fixedNow)
	payload, err := BuildPayload(validForm(), ref, "landing-page")
	require.NoError(t, err)

	res := s.recovered(context.Background(), Result{States: []State{StateIdle, StateValidating, StateSubmitting}},
		validForm(), payload, ref, &progress{orderNo: "VL9"}, fixedNow)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, "VL9", res.OrderID)
	assert.Equal(t, []State{StateIdle, StateValidating, StateSubmitting, StateConfirmed, StateRedirected}, res.States)

	rows := q.ofKind(tasks.KindSheetAppend)
	require.Len(t, rows, 1)
	assert.Equal(t, "VL9", rows[0].(sheets.Row).Fields["orderNo"])
	saved, err := repo.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "VL9", saved.OrderNo)

	q.items = nil
	res = s.recovered(context.Background(), Result{}, validForm(), payload, ref,
		&progress{orderNo: "VL9", sheetQueued: true, recorded: true}, fixedNow)
	assert.Equal(t, "VL9", res.OrderID)
	assert.Empty(t, q.ofKind(tasks.KindSheetAppend))
}

func TestSubmit_SideEffectPanicsDoNotLoseOrder(t *testing.T) {
	provider := &stubProvider{resp: &thyrocare.OrderResponse{ResponseStatus: status("true"), OrderNo: "VL124"}}
	s := NewSubmitter(provider, panickingEnqueuer{}, panickingRepo{NewMemorySubmissionRepository()}, nil).
		WithClock(func() time.Time { return fixedNow })

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, "VL124", res.OrderID)
	assert.Equal(t, []State{StateIdle, StateValidating, StateSubmitting, StateConfirmed, StateRedirected}, res.States)
}

func TestSubmit_FallbackSideEffectPanicsStillRedirect(t *testing.T) {
	provider := &stubProvider{err: errors.New("timeout")}
	s := NewSubmitter(provider, panickingEnqueuer{}, panickingRepo{NewMemorySubmissionRepository()}, nil).
		WithClock(func() time.Time { return fixedNow })

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)
	assertFallback(t, res)
	assert.Contains(t, res.Reason, "timeout")
}

func TestSubmit_QueueErrorsDoNotChangeOutcome(t *testing.T) {
	provider := &stubProvider{resp: &thyrocare.OrderResponse{ResponseStatus: status("true"), OrderNo: "VL125"}}
	s, q, _, _ := newTestSubmitter(provider)
	q.err = errors.New("sqs unavailable")

	res := s.Submit(context.Background(), validForm(), pincode.StateValid)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, "VL125", res.OrderID)
}

func TestResultJSONHidesOutcome(t *testing.T) {
	raw, err := json.Marshal(Result{Message: MessageSubmitted, OrderID: "ORD1", RedirectURL: SummaryURL("ORD1"), Outcome: OutcomeFallback, Reason: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Booking Submitted","orderId":"ORD1","redirectUrl":"/order-summary?orderId=ORD1"}`, string(raw))
}
