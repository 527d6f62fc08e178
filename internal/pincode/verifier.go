// Package pincode checks whether home sample collection is available at a
// postal code and remembers the answer.
package pincode

import (
	"context"
	"strings"

	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
	"github.com/wolfman30/diagnostic-booking/internal/validation"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// State is the tri-state serviceability of a pincode.
type State string

const (
	StateUnknown State = "unknown"
	StateValid   State = "valid"
	StateInvalid State = "invalid"
)

// Bool maps the state to true, false or nil (unknown).
func (s State) Bool() *bool {
	switch s {
	case StateValid:
		v := true
		return &v
	case StateInvalid:
		v := false
		return &v
	}
	return nil
}

// FailurePolicy decides what a transport failure means for serviceability.
type FailurePolicy string

const (
	// FailOpen leaves the state unknown so the real order is still attempted.
	FailOpen FailurePolicy = "open"
	// FailClosed treats an unreachable provider as not serviceable.
	FailClosed FailurePolicy = "closed"
)

// ParseFailurePolicy returns FailClosed for "closed" and FailOpen otherwise.
func ParseFailurePolicy(s string) FailurePolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(FailClosed)) {
		return FailClosed
	}
	return FailOpen
}

const (
	NoticeNotServiceable = "Service is not available at this pincode."
	NoticeCheckFailed    = "Could not validate pincode. Please try again."
)

// Result is the outcome of one verification.
type Result struct {
	Pincode string `json:"pincode"`
	State   State  `json:"state"`
	Valid   *bool  `json:"valid"`
	Notice  string `json:"notice,omitempty"`
	Cached  bool   `json:"cached"`
}

// Checker is the provider call used for verification.
type Checker interface {
	CheckPincode(ctx context.Context, pincode string) (*thyrocare.PincodeResponse, error)
}

// Verifier resolves pincode serviceability with a cache in front of the provider.
type Verifier struct {
	checker Checker
	cache   Cache
	policy  FailurePolicy
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

func NewVerifier(checker Checker, cache Cache, policy FailurePolicy, logger *logging.Logger, m *metrics.BookingMetrics) *Verifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	if policy == "" {
		policy = FailOpen
	}
	return &Verifier{
		checker: checker,
		cache:   cache,
		policy:  policy,
		logger:  logger.WithComponent("pincode"),
		metrics: m,
	}
}

// Verify never returns an error: malformed input is invalid without a network
// call, and provider failures resolve through the failure policy.
func (v *Verifier) Verify(ctx context.Context, raw string) Result {
	code := strings.TrimSpace(raw)
	if !validation.IsPincode(code) {
		v.metrics.ObservePincode(string(StateInvalid), false)
		return newResult(code, StateInvalid, validation.ErrPincodeInvalid.Error(), false)
	}

	if state, ok, err := v.cache.Get(ctx, code); err != nil {
		v.logger.Warn("pincode cache read failed", "pincode", code, "error", err)
	} else if ok {
		v.metrics.ObservePincode(string(state), true)
		return newResult(code, state, noticeFor(state), true)
	}

	resp, err := v.checker.CheckPincode(ctx, code)
	if err != nil {
		v.logger.Warn("pincode check failed", "pincode", code, "policy", v.policy, "error", err)
		if v.policy == FailClosed {
			v.metrics.ObservePincode(string(StateInvalid), false)
			return newResult(code, StateInvalid, NoticeCheckFailed, false)
		}
		v.metrics.ObservePincode(string(StateUnknown), false)
		return newResult(code, StateUnknown, "", false)
	}

	state := StateInvalid
	if resp.Serviceable() {
		state = StateValid
	}
	if err := v.cache.Set(ctx, code, state); err != nil {
		v.logger.Warn("pincode cache write failed", "pincode", code, "error", err)
	}
	v.metrics.ObservePincode(string(state), false)
	return newResult(code, state, noticeFor(state), false)
}

func newResult(code string, state State, notice string, cached bool) Result {
	return Result{Pincode: code, State: state, Valid: state.Bool(), Notice: notice, Cached: cached}
}

func noticeFor(state State) string {
	if state == StateInvalid {
		return NoticeNotServiceable
	}
	return ""
}
