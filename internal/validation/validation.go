// Package validation holds the field validators shared by the booking form,
// the callback popup and the proxy endpoints.
package validation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// DefaultAddressMinLength is the minimum address length accepted by the form.
const DefaultAddressMinLength = 25

var (
	ErrNameRequired    = errors.New("Name is required")
	ErrNameInvalid     = errors.New("Please enter a valid name")
	ErrAgeRequired     = errors.New("Age is required")
	ErrAgeNotNumber    = errors.New("Age must be a number")
	ErrAgeTooLow       = errors.New("Age must be greater than 0")
	ErrAgeTooHigh      = errors.New("Age must be 120 or below")
	ErrAddressRequired = errors.New("Address is required")
	ErrAddressShort    = errors.New("Address is too short")
	ErrEmailRequired   = errors.New("Email is required")
	ErrEmailInvalid    = errors.New("Please enter a valid email address")
	ErrMobileRequired  = errors.New("Mobile number is required")
	ErrMobileInvalid   = errors.New("Please enter a valid 10-digit mobile number")
	ErrPincodeRequired = errors.New("Pincode is required")
	ErrPincodeInvalid  = errors.New("Please enter a valid 6-digit pincode")
	ErrGenderRequired  = errors.New("Gender is required")
	ErrGenderInvalid   = errors.New("Gender must be male, female or other")
)

var personNamePattern = regexp.MustCompile(`^[\p{L}][\p{L} .']*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return IsDigits(fl.Field().String())
	})
	_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return fixedDigits(fl.Field().String(), 6)
	})
	_ = v.RegisterValidation("mobile10", func(fl validator.FieldLevel) bool {
		return fixedDigits(fl.Field().String(), 10)
	})
	_ = v.RegisterValidation("age", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) > 3 || !IsDigits(s) {
			return false
		}
		n, _ := strconv.Atoi(s)
		return n >= 1 && n <= 120
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	// minaddr=N: at least N characters once surrounding space is trimmed.
	_ = v.RegisterValidation("minaddr", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
	})
	return v
}

func fixedDigits(s string, n int) bool {
	return len(s) == n && IsDigits(s)
}

// IsDigits reports whether s is non-empty and made of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsPincode reports whether s is a six digit postal code.
func IsPincode(s string) bool {
	return validate.Var(s, "pincode") == nil
}

func Name(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrNameRequired
	}
	if err := validate.Var(s, "min=2,max=60,personname"); err != nil {
		return ErrNameInvalid
	}
	return nil
}

// Age accepts whole years between 1 and 120.
func Age(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrAgeRequired
	}
	if validate.Var(s, "age") == nil {
		return nil
	}
	if validate.Var(s, "digits") != nil {
		return ErrAgeNotNumber
	}
	if validate.Var(s, "max=3") != nil {
		return ErrAgeTooHigh
	}
	if n, _ := strconv.Atoi(s); n < 1 {
		return ErrAgeTooLow
	}
	return ErrAgeTooHigh
}

// Address enforces a trimmed minimum length; minLength <= 0 uses the default.
func Address(s string, minLength int) error {
	if minLength <= 0 {
		minLength = DefaultAddressMinLength
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrAddressRequired
	}
	if validate.Var(s, "minaddr="+strconv.Itoa(minLength)) != nil {
		return ErrAddressShort
	}
	return nil
}

func Email(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrEmailRequired
	}
	if validate.Var(s, "email") != nil {
		return ErrEmailInvalid
	}
	return nil
}

func Mobile(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrMobileRequired
	}
	if validate.Var(s, "mobile10") != nil {
		return ErrMobileInvalid
	}
	return nil
}

func Pincode(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrPincodeRequired
	}
	if !IsPincode(s) {
		return ErrPincodeInvalid
	}
	return nil
}

func Gender(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ErrGenderRequired
	}
	if validate.Var(s, "oneof=male female other") != nil {
		return ErrGenderInvalid
	}
	return nil
}
