package thyrocare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string, number or boolean into its string form.
// The provider is inconsistent about quoting identifiers and status flags.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = FlexString(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("flex string: %w", err)
		}
		*f = FlexString(n.String())
	}
	return nil
}

func (f FlexString) String() string { return string(f) }

type pincodeRequest struct {
	APIKey  string `json:"ApiKey"`
	Pincode string `json:"Pincode"`
}

// PincodeResponse is the serviceability answer for a pincode.
type PincodeResponse struct {
	Status   *FlexString `json:"status"`
	Response string      `json:"response"`
	RespID   FlexString  `json:"respId"`
}

func (r *PincodeResponse) check() error {
	if r.Status == nil {
		return fmt.Errorf("%w: missing status", ErrDecode)
	}
	return nil
}

// Serviceable reports whether the provider answered with status "Y".
func (r PincodeResponse) Serviceable() bool {
	return r.Status != nil && strings.EqualFold(strings.TrimSpace(r.Status.String()), "Y")
}

// SlotPatient is one person the slot search is run for.
type SlotPatient struct {
	ID     int    `json:"Id"`
	Name   string `json:"Name"`
	Gender string `json:"Gender"`
	Age    int    `json:"Age"`
}

// SlotItem links a product to the patients taking it.
type SlotItem struct {
	ID              string `json:"Id"`
	PatientQuantity int    `json:"PatientQuantity"`
	PatientIDs      []int  `json:"PatientIds"`
}

// SlotsRequest asks for appointment slots on a date.
type SlotsRequest struct {
	APIKey      string        `json:"ApiKey"`
	Date        string        `json:"Date"`
	Pincode     string        `json:"Pincode"`
	StrProducts string        `json:"strproducts"`
	BenCount    int           `json:"BenCount"`
	Patients    []SlotPatient `json:"Patients"`
	Items       []SlotItem    `json:"Items"`
}

// Slot is a bookable window as returned by the provider.
type Slot struct {
	ID           FlexString `json:"id"`
	SlotMasterID FlexString `json:"slotMasterId"`
	Slot         string     `json:"slot"`
}

type SlotsResponse struct {
	Slots    []Slot     `json:"lSlotDataRes"`
	Response string     `json:"response"`
	RespID   FlexString `json:"respId"`
}

// OrderBeneficiary is one entry of ben_data.
type OrderBeneficiary struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// OrderRequest is the order-creation payload. It is written once per
// submission attempt and never mutated after it is sent.
type OrderRequest struct {
	APIKey         string             `json:"api_key,omitempty"`
	RefOrderID     string             `json:"ref_order_id"`
	OrderBy        string             `json:"order_by"`
	Email          string             `json:"email"`
	Mobile         string             `json:"mobile"`
	Address        string             `json:"address"`
	Pincode        string             `json:"pincode"`
	Product        string             `json:"product"`
	ProductName    string             `json:"product_name"`
	Rate           int                `json:"rate"`
	ApptDate       string             `json:"appt_date"`
	SlotMasterID   string             `json:"slot_master_id,omitempty"`
	PayType        string             `json:"pay_type"`
	ServiceType    string             `json:"service_type"`
	Reports        string             `json:"reports"`
	BenCount       int                `json:"ben_count"`
	BenData        []OrderBeneficiary `json:"ben_data"`
	Remarks        string             `json:"remarks,omitempty"`
	Source         string             `json:"source,omitempty"`
	ContactConsent string             `json:"contact_consent,omitempty"`
}

type OrderResponse struct {
	ResponseStatus *FlexString `json:"response_status"`
	OrderNo        FlexString  `json:"order_no"`
	Message        string      `json:"message"`
}

func (r *OrderResponse) check() error {
	if r.ResponseStatus == nil {
		return fmt.Errorf("%w: missing response_status", ErrDecode)
	}
	return nil
}

// Succeeded reports a created order: status 1 (or true) with an order number.
func (r OrderResponse) Succeeded() bool {
	if r.ResponseStatus == nil || strings.TrimSpace(r.OrderNo.String()) == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(r.ResponseStatus.String())) {
	case "1", "true", "success":
		return true
	}
	return false
}

type orderSummaryRequest struct {
	APIKey  string `json:"ApiKey"`
	OrderNo string `json:"OrderNo"`
}

type BenMaster struct {
	ID      FlexString `json:"id"`
	Name    string     `json:"name"`
	Age     FlexString `json:"age"`
	Gender  string     `json:"gender"`
	Mobile  string     `json:"mobile"`
	Status  string     `json:"status"`
	Barcode string     `json:"barcode"`
}

type OrderMaster struct {
	OrderNo     string     `json:"orderNo"`
	Names       string     `json:"names"`
	Products    string     `json:"products"`
	ServiceType string     `json:"serviceType"`
	PayType     string     `json:"payType"`
	Rate        FlexString `json:"rate"`
	Address     string     `json:"address"`
	Pincode     FlexString `json:"pincode"`
	Remarks     string     `json:"remarks"`
	Status      string     `json:"status"`
	Email       string     `json:"email"`
	Mobile      string     `json:"mobile"`
}

type TSPMaster struct {
	TSP       string `json:"tsp"`
	Email     string `json:"email"`
	Landline  string `json:"landline"`
	Mobile    string `json:"mobile"`
	BCTName   string `json:"bctName"`
	BCTMobile string `json:"bctMobile"`
}

type LeadHistoryDate struct {
	LeadID FlexString `json:"leadId"`
	Date   string     `json:"date"`
}

type LeadHistoryMaster struct {
	BookedOn    []LeadHistoryDate `json:"bookedOn"`
	AssignTSPOn []LeadHistoryDate `json:"assignTspOn"`
	AppointOn   []LeadHistoryDate `json:"appointOn"`
	ReappointOn []LeadHistoryDate `json:"reappointOn"`
	ServicedOn  []LeadHistoryDate `json:"servicedOn"`
	ReportedOn  []LeadHistoryDate `json:"reportedOn"`
	DeliverdOn  []LeadHistoryDate `json:"deliverdOn"`
	RejectedOn  []LeadHistoryDate `json:"rejectedOn"`
}

type PhleboDetail struct {
	PhleboNumber *string `json:"phleboNumber"`
	PhleboName   *string `json:"phleboName"`
}

// OrderSummaryResponse is the provider's view of an order. Callers treat it
// as read-only once fetched.
type OrderSummaryResponse struct {
	RespID            FlexString          `json:"respId"`
	Response          string              `json:"response"`
	MergedOrderNos    *string             `json:"mergedOrderNos"`
	OrderMaster       []OrderMaster       `json:"orderMaster"`
	LeadHistoryMaster []LeadHistoryMaster `json:"leadHistoryMaster"`
	BenMaster         []BenMaster         `json:"benMaster"`
	TSPMaster         []TSPMaster         `json:"tspMaster"`
	PhleboDetail      PhleboDetail        `json:"phleboDetail"`
}

// Processing reports whether the provider has not materialised the order yet.
func (r *OrderSummaryResponse) Processing() bool {
	return r == nil || len(r.OrderMaster) == 0
}

// BookedOn returns the date part of the first booking history entry.
func (r *OrderSummaryResponse) BookedOn() string {
	if r == nil || len(r.LeadHistoryMaster) == 0 || len(r.LeadHistoryMaster[0].BookedOn) == 0 {
		return ""
	}
	date := r.LeadHistoryMaster[0].BookedOn[0].Date
	if i := strings.IndexByte(date, ' '); i >= 0 {
		return date[:i]
	}
	return date
}

// AppointedOn returns the first appointment history date, if any.
func (r *OrderSummaryResponse) AppointedOn() string {
	if r == nil || len(r.LeadHistoryMaster) == 0 || len(r.LeadHistoryMaster[0].AppointOn) == 0 {
		return ""
	}
	return r.LeadHistoryMaster[0].AppointOn[0].Date
}
