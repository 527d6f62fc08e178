// Package leads captures callback requests left from the exit-intent popup.
package leads

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/diagnostic-booking/internal/validation"
)

// DefaultSource tags callback requests that arrive without one.
const DefaultSource = "ExitIntentPopup"

// CallbackLead is a phone number left by a visitor who wants a call back.
type CallbackLead struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCallbackRequest is the body of POST /api/callback-requests.
type CreateCallbackRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Source      string `json:"source"`
}

// Normalize trims fields and applies the default source.
func (r *CreateCallbackRequest) Normalize() {
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Source = strings.TrimSpace(r.Source)
	if r.Source == "" {
		r.Source = DefaultSource
	}
}

// Validate validates the callback request
func (r *CreateCallbackRequest) Validate() error {
	if err := validation.Mobile(r.PhoneNumber); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	return nil
}
