// Package sheets appends audit rows to the booking spreadsheet.
package sheets

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sheet names a tab of the booking spreadsheet.
type Sheet string

const (
	SheetOrders       Sheet = "Orders"
	SheetFailedOrders Sheet = "FailedOrders"
	SheetPhoneNumbers Sheet = "PhoneNumbers"
)

// columns fixes the column order used when appending through the Sheets API.
var columns = map[Sheet][]string{
	SheetOrders: {
		"orderNo", "orderDate", "paymentMode", "preferredDateTime", "rate", "beneficiaryName",
		"testDetails", "mobileNumber", "emailAddress", "address", "timestamp",
	},
	SheetFailedOrders: {
		"refOrderId", "name", "email", "mobile", "age", "gender", "address", "pincode",
		"package", "quantity", "appointmentDate", "slot", "errorMessage", "timestamp",
	},
	SheetPhoneNumbers: {"phoneNumber", "source", "timestamp"},
}

// ParseSheet maps a sheetName discriminator. An empty name means Orders.
func ParseSheet(name string) (Sheet, error) {
	switch strings.TrimSpace(name) {
	case "", string(SheetOrders):
		return SheetOrders, nil
	case string(SheetFailedOrders):
		return SheetFailedOrders, nil
	case string(SheetPhoneNumbers):
		return SheetPhoneNumbers, nil
	}
	return "", fmt.Errorf("sheets: unknown sheet %q", name)
}

// Columns returns the column order for a sheet.
func Columns(sheet Sheet) []string {
	return append([]string(nil), columns[sheet]...)
}

// Row is one spreadsheet row. It marshals flat, as {"sheetName": ..., field: value}.
type Row struct {
	Sheet  Sheet
	Fields map[string]string
}

// Values returns the row's cells in column order.
func (r Row) Values() []interface{} {
	cols := columns[r.Sheet]
	out := make([]interface{}, len(cols))
	for i, col := range cols {
		out[i] = r.Fields[col]
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["sheetName"] = string(r.Sheet)
	return json.Marshal(flat)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	var name string
	if raw, ok := flat["sheetName"]; ok {
		if err := json.Unmarshal(raw, &name); err != nil {
			return fmt.Errorf("sheets: sheetName: %w", err)
		}
		delete(flat, "sheetName")
	}
	sheet, err := ParseSheet(name)
	if err != nil {
		return err
	}
	fields := make(map[string]string, len(flat))
	for k, raw := range flat {
		fields[k] = scalarString(raw)
	}
	r.Sheet = sheet
	r.Fields = fields
	return nil
}

// scalarString renders JSON scalars as plain text; objects keep their JSON form.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// Timestamp formats t the way the spreadsheet expects.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// OrderRecord is a confirmed order.
type OrderRecord struct {
	OrderNo           string
	OrderDate         string
	PaymentMode       string
	PreferredDateTime string
	Rate              string
	BeneficiaryName   string
	TestDetails       string
	MobileNumber      string
	EmailAddress      string
	Address           string
	Timestamp         time.Time
}

func (o OrderRecord) Row() Row {
	return Row{Sheet: SheetOrders, Fields: map[string]string{
		"orderNo":           o.OrderNo,
		"orderDate":         o.OrderDate,
		"paymentMode":       o.PaymentMode,
		"preferredDateTime": o.PreferredDateTime,
		"rate":              o.Rate,
		"beneficiaryName":   o.BeneficiaryName,
		"testDetails":       o.TestDetails,
		"mobileNumber":      o.MobileNumber,
		"emailAddress":      o.EmailAddress,
		"address":           o.Address,
		"timestamp":         Timestamp(o.Timestamp),
	}}
}

// FailedOrderRecord is a booking that could not be placed upstream and needs
// manual follow-up.
type FailedOrderRecord struct {
	RefOrderID      string
	Name            string
	Email           string
	Mobile          string
	Age             string
	Gender          string
	Address         string
	Pincode         string
	Package         string
	Quantity        int
	AppointmentDate string
	Slot            string
	ErrorMessage    string
	Timestamp       time.Time
}

func (f FailedOrderRecord) Row() Row {
	return Row{Sheet: SheetFailedOrders, Fields: map[string]string{
		"refOrderId":      f.RefOrderID,
		"name":            f.Name,
		"email":           f.Email,
		"mobile":          f.Mobile,
		"age":             f.Age,
		"gender":          f.Gender,
		"address":         f.Address,
		"pincode":         f.Pincode,
		"package":         f.Package,
		"quantity":        strconv.Itoa(f.Quantity),
		"appointmentDate": f.AppointmentDate,
		"slot":            f.Slot,
		"errorMessage":    f.ErrorMessage,
		"timestamp":       Timestamp(f.Timestamp),
	}}
}

// PhoneNumberRecord is a callback request from the exit-intent popup.
type PhoneNumberRecord struct {
	PhoneNumber string
	Source      string
	Timestamp   time.Time
}

func (p PhoneNumberRecord) Row() Row {
	return Row{Sheet: SheetPhoneNumbers, Fields: map[string]string{
		"phoneNumber": p.PhoneNumber,
		"source":      p.Source,
		"timestamp":   Timestamp(p.Timestamp),
	}}
}
