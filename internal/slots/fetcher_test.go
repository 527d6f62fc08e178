package slots

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/diagnostic-booking/internal/beneficiary"
	"github.com/wolfman30/diagnostic-booking/internal/pincode"
	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
)

type stubProvider struct {
	calls []thyrocare.SlotsRequest
	resp  *thyrocare.SlotsResponse
	err   error
}

func (s *stubProvider) AppointmentSlots(_ context.Context, req thyrocare.SlotsRequest) (*thyrocare.SlotsResponse, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

var primary = beneficiary.Beneficiary{Name: "Asha Rao", Gender: "female", Age: "30"}

func baseRequest() Request {
	return Request{
		Date:         "2026-10-20",
		Pincode:      "560001",
		PincodeState: pincode.StateValid,
		ProductCode:  "PROJ1052746",
		Quantity:     2,
		Primary:      primary,
		Additional: []beneficiary.Beneficiary{
			{ID: "a", Name: "Asha Rao", Gender: "female", Age: "30"},
			{ID: "b", Name: "Ravi Rao", Gender: "male", Age: "33"},
		},
	}
}

func assertFallback(t *testing.T, res Result) {
	t.Helper()
	assert.True(t, res.Fallback)
	require.Len(t, res.Slots, 4)
	labels := []string{res.Slots[0].Slot, res.Slots[1].Slot, res.Slots[2].Slot, res.Slots[3].Slot}
	assert.Equal(t, []string{"Morning", "Afternoon", "Evening", "Night"}, labels)
}

func TestFetch_InvalidPincodeUsesFallbackWithoutCall(t *testing.T) {
	provider := &stubProvider{}
	req := baseRequest()
	req.PincodeState = pincode.StateInvalid

	res, err := NewFetcher(provider, nil).Fetch(context.Background(), req)
	require.NoError(t, err)
	assertFallback(t, res)
	assert.Empty(t, provider.calls)
}

func TestFetch_TransportErrorUsesFallback(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection reset")}
	res, err := NewFetcher(provider, nil).Fetch(context.Background(), baseRequest())
	require.NoError(t, err)
	assertFallback(t, res)
	assert.Empty(t, res.Notice)
}

func TestFetch_UnknownPincodeStillQueries(t *testing.T) {
	provider := &stubProvider{resp: &thyrocare.SlotsResponse{Slots: []thyrocare.Slot{{ID: "1", SlotMasterID: "9", Slot: "07:00 - 07:30"}}}}
	req := baseRequest()
	req.PincodeState = pincode.StateUnknown

	res, err := NewFetcher(provider, nil).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, TimeSlot{ID: "1", SlotMasterID: "9", Slot: "07:00 - 07:30"}, res.Slots[0])
}

func TestFetch_EmptyListCarriesNotice(t *testing.T) {
	provider := &stubProvider{resp: &thyrocare.SlotsResponse{}}
	res, err := NewFetcher(provider, nil).Fetch(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Empty(t, res.Slots)
	assert.Equal(t, NoticeNoSlots, res.Notice)
}

func TestFetch_RejectsMalformedDate(t *testing.T) {
	req := baseRequest()
	req.Date = "20/10/2026"
	_, err := NewFetcher(&stubProvider{}, nil).Fetch(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestBuildProviderRequest_DedupesPrimary(t *testing.T) {
	got := BuildProviderRequest(baseRequest())
	require.Len(t, got.Patients, 2)
	assert.Equal(t, thyrocare.SlotPatient{ID: 1, Name: "Asha Rao", Gender: "F", Age: 30}, got.Patients[0])
	assert.Equal(t, thyrocare.SlotPatient{ID: 2, Name: "Ravi Rao", Gender: "M", Age: 33}, got.Patients[1])
	assert.Equal(t, 2, got.BenCount)
	assert.Equal(t, "PROJ1052746", got.StrProducts)
	require.Len(t, got.Items, 1)
	assert.Equal(t, []int{1, 2}, got.Items[0].PatientIDs)
	assert.Equal(t, 2, got.Items[0].PatientQuantity)
}

func TestBuildProviderRequest_PatientsBoundedByQuantity(t *testing.T) {
	req := baseRequest()
	req.Additional = append(req.Additional, beneficiary.Beneficiary{ID: "c", Name: "Meera Rao", Gender: "female", Age: "8"})

	got := BuildProviderRequest(req)
	assert.Equal(t, 2, got.BenCount)
	require.Len(t, got.Patients, got.BenCount)
	assert.Equal(t, "Ravi Rao", got.Patients[1].Name)
	assert.Equal(t, len(got.Patients), got.Items[0].PatientQuantity)
}

func TestStartTime(t *testing.T) {
	cases := map[string]string{
		"Morning":         "08:00",
		"afternoon":       "13:00",
		"Evening":         "17:00",
		"NIGHT":           "20:00",
		"07:00 - 07:30":   "07:00",
		"6:30 - 7:00":     "06:30",
		"02:30 PM - 3 PM": "14:30",
		"12:15 am":        "00:15",
		"whenever":        "08:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, StartTime(in), in)
	}
}

func TestGenderCode(t *testing.T) {
	assert.Equal(t, "M", GenderCode("Male"))
	assert.Equal(t, "F", GenderCode("female"))
	assert.Equal(t, "O", GenderCode("other"))
}

func TestFallbackSlotsReturnsCopy(t *testing.T) {
	list := FallbackSlots()
	list[0].Slot = "changed"
	assert.Equal(t, "Morning", FallbackSlots()[0].Slot)
}
