// Package orders turns a completed booking form into a provider order. A
// submission never dead-ends: when the provider cannot take the order it is
// logged for manual follow-up and the customer still gets a reference.
package orders

import (
	"strings"
	"time"

	"github.com/wolfman30/diagnostic-booking/internal/beneficiary"
	"github.com/wolfman30/diagnostic-booking/internal/catalog"
	"github.com/wolfman30/diagnostic-booking/internal/consent"
	"github.com/wolfman30/diagnostic-booking/internal/slots"
	"github.com/wolfman30/diagnostic-booking/internal/validation"
)

// Field messages that are not produced by the validation package.
const (
	MsgPackageRequired       = "Please select a package"
	MsgQuantityInvalid       = "Quantity must be at least 1"
	MsgDateRequired          = "Please select an appointment date"
	MsgDateInvalid           = "Appointment date must be YYYY-MM-DD"
	MsgSlotRequired          = "Please select a time slot"
	MsgAuthorizationRequired = "Please authorize us to contact you"
	MsgBeneficiariesMissing  = "Please add details for all beneficiaries"
	MsgBeneficiariesExcess   = "More beneficiaries than the selected quantity"
)

// ContactPreferences are the channels the customer agreed to be contacted on.
type ContactPreferences struct {
	WhatsApp bool `json:"whatsapp"`
	Call     bool `json:"call"`
	Email    bool `json:"email"`
	SMS      bool `json:"sms"`
}

// Channels lists the enabled channels in a fixed order.
func (c ContactPreferences) Channels() []string {
	out := []string{}
	if c.WhatsApp {
		out = append(out, consent.ChannelWhatsApp)
	}
	if c.Call {
		out = append(out, consent.ChannelCall)
	}
	if c.Email {
		out = append(out, consent.ChannelEmail)
	}
	if c.SMS {
		out = append(out, consent.ChannelSMS)
	}
	return out
}

// Form is the booking form as submitted.
type Form struct {
	Pincode            string                    `json:"pincode"`
	Name               string                    `json:"name"`
	Mobile             string                    `json:"mobile"`
	Email              string                    `json:"email"`
	Age                string                    `json:"age"`
	Gender             string                    `json:"gender"`
	Address            string                    `json:"address"`
	Package            string                    `json:"package"`
	Quantity           int                       `json:"quantity"`
	AppointmentDate    string                    `json:"appointmentDate,omitempty"`
	Slot               string                    `json:"slot"`
	SlotMasterID       string                    `json:"slotMasterId,omitempty"`
	PrintedReports     bool                      `json:"printedReports"`
	ContactPreferences ContactPreferences        `json:"contactPreferences"`
	Authorized         bool                      `json:"authorized"`
	Beneficiaries      []beneficiary.Beneficiary `json:"beneficiaries"`
}

// Primary is the person filling the form.
func (f Form) Primary() beneficiary.Beneficiary {
	return beneficiary.Beneficiary{Name: f.Name, Gender: f.Gender, Age: f.Age}
}

// Rules holds the configurable parts of form validation.
type Rules struct {
	AddressMinLength int
}

// ValidateForm runs every field check and returns the per-field messages.
// An empty result means the form may be submitted.
func ValidateForm(f Form, rules Rules) validation.FieldErrors {
	fe := validation.FieldErrors{}
	fe.Add("pincode", validation.Pincode(f.Pincode))
	fe.Add("name", validation.Name(f.Name))
	fe.Add("mobile", validation.Mobile(f.Mobile))
	fe.Add("email", validation.Email(f.Email))
	fe.Add("age", validation.Age(f.Age))
	fe.Add("gender", validation.Gender(f.Gender))
	fe.Add("address", validation.Address(f.Address, rules.AddressMinLength))

	if strings.TrimSpace(f.Package) == "" {
		fe.Set("package", MsgPackageRequired)
	} else if _, err := catalog.Parse(f.Package); err != nil {
		fe.Set("package", MsgPackageRequired)
	}
	if f.Quantity < 1 {
		fe.Set("quantity", MsgQuantityInvalid)
	}

	switch date := strings.TrimSpace(f.AppointmentDate); {
	case date == "":
		fe.Set("appointmentDate", MsgDateRequired)
	default:
		if _, err := time.Parse(slots.DateLayout, date); err != nil {
			fe.Set("appointmentDate", MsgDateInvalid)
		}
	}
	if strings.TrimSpace(f.Slot) == "" {
		fe.Set("slot", MsgSlotRequired)
	}
	if !f.Authorized {
		fe.Set("authorized", MsgAuthorizationRequired)
	}

	switch {
	case beneficiary.Partial(f.Beneficiaries):
		fe.Set("beneficiaries", MsgBeneficiariesMissing)
	case f.Quantity > 1 && filledRows(f.Beneficiaries) < f.Quantity-1:
		fe.Set("beneficiaries", MsgBeneficiariesMissing)
	case f.Quantity >= 1 && 1+len(beneficiary.Additional(f.Primary(), f.Beneficiaries)) > f.Quantity:
		fe.Set("beneficiaries", MsgBeneficiariesExcess)
	}
	return fe
}

func filledRows(rows []beneficiary.Beneficiary) int {
	n := 0
	for _, b := range rows {
		if b.Filled() {
			n++
		}
	}
	return n
}
