// Package slots fetches appointment windows for a date, falling back to broad
// day-parts whenever the provider cannot answer.
package slots

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/diagnostic-booking/internal/beneficiary"
	"github.com/wolfman30/diagnostic-booking/internal/pincode"
	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// DateLayout is the calendar date format used for slot searches.
const DateLayout = "2006-01-02"

const NoticeNoSlots = "No slots available for the selected date."

var ErrInvalidDate = errors.New("slots: date must be YYYY-MM-DD")

// TimeSlot is a selectable appointment window.
type TimeSlot struct {
	ID           string `json:"id"`
	SlotMasterID string `json:"slotMasterId"`
	Slot         string `json:"slot"`
}

// fallbackSlots are offered when real availability is unknown.
var fallbackSlots = []TimeSlot{
	{ID: "fallback-morning", Slot: "Morning"},
	{ID: "fallback-afternoon", Slot: "Afternoon"},
	{ID: "fallback-evening", Slot: "Evening"},
	{ID: "fallback-night", Slot: "Night"},
}

var dayPartStart = map[string]string{
	"morning":   "08:00",
	"afternoon": "13:00",
	"evening":   "17:00",
	"night":     "20:00",
}

// FallbackSlots returns a fresh copy of the day-part list.
func FallbackSlots() []TimeSlot {
	out := make([]TimeSlot, len(fallbackSlots))
	copy(out, fallbackSlots)
	return out
}

var clockPattern = regexp.MustCompile(`(?i)\b([01]?\d|2[0-3]):([0-5]\d)\s*(am|pm)?`)

// StartTime derives an HH:MM start from a slot label such as "07:00 - 07:30"
// or a day-part name. Unrecognised labels start at 08:00.
func StartTime(label string) string {
	if start, ok := dayPartStart[strings.ToLower(strings.TrimSpace(label))]; ok {
		return start
	}
	m := clockPattern.FindStringSubmatch(label)
	if m == nil {
		return "08:00"
	}
	h, _ := strconv.Atoi(m[1])
	switch strings.ToLower(m[3]) {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	return fmt.Sprintf("%02d:%s", h, m[2])
}

// Request describes one slot search.
type Request struct {
	Date         string
	Pincode      string
	PincodeState pincode.State
	ProductCode  string
	Quantity     int
	Primary      beneficiary.Beneficiary
	Additional   []beneficiary.Beneficiary
}

// Result replaces the session's available slots wholesale.
type Result struct {
	Date     string     `json:"date"`
	Slots    []TimeSlot `json:"slots"`
	Fallback bool       `json:"fallback"`
	Notice   string     `json:"notice,omitempty"`
}

// Provider is the upstream slot search.
type Provider interface {
	AppointmentSlots(ctx context.Context, req thyrocare.SlotsRequest) (*thyrocare.SlotsResponse, error)
}

type Fetcher struct {
	provider Provider
	logger   *logging.Logger
}

func NewFetcher(provider Provider, logger *logging.Logger) *Fetcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Fetcher{provider: provider, logger: logger.WithComponent("slots")}
}

// Fetch returns slots for req.Date. Only a malformed date is an error; an
// invalid pincode or any provider failure yields the day-part fallback.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	if _, err := time.Parse(DateLayout, strings.TrimSpace(req.Date)); err != nil {
		return Result{}, ErrInvalidDate
	}
	date := strings.TrimSpace(req.Date)

	if req.PincodeState == pincode.StateInvalid {
		return Result{Date: date, Slots: FallbackSlots(), Fallback: true}, nil
	}

	resp, err := f.provider.AppointmentSlots(ctx, BuildProviderRequest(req))
	if err != nil {
		f.logger.Warn("slot fetch failed, using day-part fallback", "date", date, "pincode", req.Pincode, "error", err)
		return Result{Date: date, Slots: FallbackSlots(), Fallback: true}, nil
	}

	out := make([]TimeSlot, 0, len(resp.Slots))
	for _, s := range resp.Slots {
		if strings.TrimSpace(s.Slot) == "" {
			continue
		}
		out = append(out, TimeSlot{ID: s.ID.String(), SlotMasterID: s.SlotMasterID.String(), Slot: s.Slot})
	}
	res := Result{Date: date, Slots: out}
	if len(out) == 0 {
		res.Notice = NoticeNoSlots
	}
	return res, nil
}

// Patients lists the primary person followed by the distinct additional
// beneficiaries.
func Patients(primary beneficiary.Beneficiary, additional []beneficiary.Beneficiary) []beneficiary.Beneficiary {
	out := []beneficiary.Beneficiary{primary}
	return append(out, beneficiary.Additional(primary, additional)...)
}

// BuildProviderRequest maps a search onto the provider's slot request.
func BuildProviderRequest(req Request) thyrocare.SlotsRequest {
	benCount := max(req.Quantity, 1)
	people := Patients(req.Primary, req.Additional)
	if len(people) > benCount {
		people = people[:benCount]
	}
	patients := make([]thyrocare.SlotPatient, 0, len(people))
	ids := make([]int, 0, len(people))
	for i, p := range people {
		age, _ := strconv.Atoi(strings.TrimSpace(p.Age))
		patients = append(patients, thyrocare.SlotPatient{
			ID:     i + 1,
			Name:   strings.TrimSpace(p.Name),
			Gender: GenderCode(p.Gender),
			Age:    age,
		})
		ids = append(ids, i+1)
	}
	return thyrocare.SlotsRequest{
		Date:        strings.TrimSpace(req.Date),
		Pincode:     strings.TrimSpace(req.Pincode),
		StrProducts: req.ProductCode,
		BenCount:    benCount,
		Patients:    patients,
		Items: []thyrocare.SlotItem{{
			ID:              req.ProductCode,
			PatientQuantity: len(patients),
			PatientIDs:      ids,
		}},
	}
}

// GenderCode maps a form gender onto the provider's single-letter code.
func GenderCode(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m":
		return "M"
	case "female", "f":
		return "F"
	}
	return "O"
}
