package leads

import "errors"

var (
	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrInvalidPhone wraps the mobile validation failure
	ErrInvalidPhone = errors.New("leads: invalid phone number")
)
