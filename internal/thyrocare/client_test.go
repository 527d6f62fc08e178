package thyrocare

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(Config{
		BaseURL:       ts.URL,
		OrderBaseURL:  ts.URL + "/",
		APIKey:        "api-key",
		PincodeAPIKey: "pin-key",
	}, logging.Default(), metrics.NewBookingMetrics(prometheus.NewRegistry()))
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body
}

func TestCheckPincode_Serviceable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/TechsoApi/PincodeAvailability" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["ApiKey"] != "pin-key" || body["Pincode"] != "560001" {
			t.Fatalf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"status":"Y","response":"Success"}`))
	})

	resp, err := client.CheckPincode(context.Background(), "560001")
	if err != nil {
		t.Fatalf("CheckPincode() error = %v", err)
	}
	if !resp.Serviceable() {
		t.Fatal("expected serviceable pincode")
	}
}

func TestCheckPincode_MissingStatusIsDecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"odd"}`))
	})
	_, err := client.CheckPincode(context.Background(), "560001")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestMissingStatusCountsAsDecodeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order_no":"VL1","response":"odd"}`))
	}))
	t.Cleanup(ts.Close)
	reg := prometheus.NewRegistry()
	client := NewClient(Config{BaseURL: ts.URL, OrderBaseURL: ts.URL}, logging.Default(), metrics.NewBookingMetrics(reg))

	if _, err := client.CheckPincode(context.Background(), "560001"); !errors.Is(err, ErrDecode) {
		t.Fatalf("CheckPincode() error = %v, want ErrDecode", err)
	}
	if _, err := client.CreateOrder(context.Background(), OrderRequest{RefOrderID: "ORD1"}); !errors.Is(err, ErrDecode) {
		t.Fatalf("CreateOrder() error = %v, want ErrDecode", err)
	}

	results := metrics.CounterTotals(reg, "booking_upstream_requests_total", "result")
	if results["decode_error"] != 2 {
		t.Fatalf("decode_error = %v, want 2 (all results %v)", results["decode_error"], results)
	}
	if results["ok"] != 0 {
		t.Fatalf("ok = %v, want 0", results["ok"])
	}
}

func TestCheckPincode_NotServiceable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"N"}`))
	})
	resp, err := client.CheckPincode(context.Background(), "999999")
	if err != nil {
		t.Fatalf("CheckPincode() error = %v", err)
	}
	if resp.Serviceable() {
		t.Fatal("expected non-serviceable pincode")
	}
}

func TestAppointmentSlots_AttachesKeyAndDecodesMixedIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/TechsoApi/GetAppointmentSlots" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["ApiKey"] != "api-key" {
			t.Fatalf("expected server-side api key, got %v", body["ApiKey"])
		}
		if body["BenCount"] != float64(2) {
			t.Fatalf("BenCount = %v", body["BenCount"])
		}
		_, _ = w.Write([]byte(`{"lSlotDataRes":[{"id":17,"slotMasterId":"3","slot":"07:00 - 07:30"}]}`))
	})

	resp, err := client.AppointmentSlots(context.Background(), SlotsRequest{
		APIKey:   "caller-supplied",
		Date:     "2026-10-20",
		Pincode:  "560001",
		BenCount: 2,
	})
	if err != nil {
		t.Fatalf("AppointmentSlots() error = %v", err)
	}
	if len(resp.Slots) != 1 || resp.Slots[0].ID != "17" || resp.Slots[0].SlotMasterID != "3" {
		t.Fatalf("unexpected slots %+v", resp.Slots)
	}
}

func TestAppointmentSlots_NullListIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lSlotDataRes":null,"response":"No slots"}`))
	})
	resp, err := client.AppointmentSlots(context.Background(), SlotsRequest{})
	if err != nil {
		t.Fatalf("AppointmentSlots() error = %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(resp.Slots))
	}
}

func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		status    int
		wantErr   error
		succeeded bool
	}{
		{"numeric success", `{"response_status":1,"order_no":"VL123"}`, http.StatusOK, nil, true},
		{"string success", `{"response_status":"1","order_no":"VL124"}`, http.StatusOK, nil, true},
		{"failure flag", `{"response_status":0,"message":"duplicate"}`, http.StatusOK, nil, false},
		{"success without order no", `{"response_status":1,"order_no":""}`, http.StatusOK, nil, false},
		{"missing status", `{"order_no":"VL1"}`, http.StatusOK, ErrDecode, false},
		{"html body", `<html>oops</html>`, http.StatusOK, ErrDecode, false},
		{"server error", `boom`, http.StatusBadGateway, ErrStatus, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/booking-master/v2/create-order" {
					t.Fatalf("path = %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			resp, err := client.CreateOrder(context.Background(), OrderRequest{RefOrderID: "ORD1"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateOrder() error = %v", err)
			}
			if resp.Succeeded() != tt.succeeded {
				t.Fatalf("Succeeded() = %v, want %v", resp.Succeeded(), tt.succeeded)
			}
		})
	}
}

func TestCreateOrder_SendsPayloadWithKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["api_key"] != "api-key" || body["ref_order_id"] != "ORD42" {
			t.Fatalf("unexpected body %v", body)
		}
		ben, ok := body["ben_data"].([]any)
		if !ok || len(ben) != 1 {
			t.Fatalf("unexpected ben_data %v", body["ben_data"])
		}
		_, _ = w.Write([]byte(`{"response_status":1,"order_no":"VL9"}`))
	})
	_, err := client.CreateOrder(context.Background(), OrderRequest{
		RefOrderID: "ORD42",
		BenData:    []OrderBeneficiary{{Name: "Asha", Age: 30, Gender: "F"}},
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
}

func TestOrderSummary_Decodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["OrderNo"] != "VL123" {
			t.Fatalf("OrderNo = %v", body["OrderNo"])
		}
		_, _ = w.Write([]byte(`{
			"respId":"RES00001","response":"Success",
			"orderMaster":[{"orderNo":"VL123","payType":"POSTPAID","rate":1499,"products":"COMPREHENSIVE PACKAGE","email":"a@b.in","address":"x"}],
			"benMaster":[{"name":"Asha","mobile":"9876543210","age":"30"}],
			"leadHistoryMaster":[{"bookedOn":[{"leadId":"1","date":"2026-10-15 10:11"}],"appointOn":[{"leadId":"1","date":"2026-10-20 08:00"}]}],
			"phleboDetail":{"phleboNumber":null,"phleboName":null}
		}`))
	})
	resp, err := client.OrderSummary(context.Background(), "VL123")
	if err != nil {
		t.Fatalf("OrderSummary() error = %v", err)
	}
	if resp.Processing() {
		t.Fatal("expected materialised order")
	}
	if resp.OrderMaster[0].Rate != "1499" {
		t.Fatalf("rate = %s", resp.OrderMaster[0].Rate)
	}
	if resp.BookedOn() != "2026-10-15" {
		t.Fatalf("BookedOn() = %s", resp.BookedOn())
	}
	if resp.AppointedOn() != "2026-10-20 08:00" {
		t.Fatalf("AppointedOn() = %s", resp.AppointedOn())
	}
}

func TestOrderSummary_EmptyMasterIsProcessing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"respId":"RES02012","response":"No data","orderMaster":[]}`))
	})
	resp, err := client.OrderSummary(context.Background(), "ORD1")
	if err != nil {
		t.Fatalf("OrderSummary() error = %v", err)
	}
	if !resp.Processing() {
		t.Fatal("expected processing summary")
	}
	if resp.BookedOn() != "" || resp.AppointedOn() != "" {
		t.Fatal("expected empty history")
	}
}

func TestForwardRaw_MergesKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"ApiKey":"pin-key"`) {
			t.Fatalf("expected pincode key in %s", raw)
		}
		_, _ = w.Write([]byte(`{"status":"Y","extra":{"kept":true}}`))
	})
	raw, err := client.ForwardRaw(context.Background(), EndpointPincode, map[string]any{"Pincode": "560001", "ApiKey": "spoofed"})
	if err != nil {
		t.Fatalf("ForwardRaw() error = %v", err)
	}
	if !strings.Contains(string(raw), `"kept":true`) {
		t.Fatalf("expected raw upstream body, got %s", raw)
	}

	if _, err := client.ForwardRaw(context.Background(), "unknown", nil); err == nil {
		t.Fatal("expected error for unknown endpoint")
	}
}

func TestFlexStringVariants(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
		D FlexString `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a":"x","b":12.5,"c":true,"d":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != "x" || v.B != "12.5" || v.C != "true" || v.D != "" {
		t.Fatalf("unexpected values %+v", v)
	}
}
