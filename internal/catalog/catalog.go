// Package catalog describes the health-checkup packages offered on the
// booking form and parses their delimited select values.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const fieldSeparator = "~"

var (
	ErrEmptyPackage   = errors.New("catalog: package is empty")
	ErrMalformed      = errors.New("catalog: package value is malformed")
	ErrUnknownPackage = errors.New("catalog: unknown package")
)

// Package is a parsed `NAME~PRICE~PRODUCT_CODE~...` select value.
type Package struct {
	Name        string   `json:"name"`
	Price       int      `json:"price"`
	ProductCode string   `json:"productCode"`
	Extra       []string `json:"extra,omitempty"`
	Raw         string   `json:"value"`
}

// Parse splits a package select value. Name and product code must be present
// and the price must be a whole number of rupees.
func Parse(raw string) (Package, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Package{}, ErrEmptyPackage
	}
	parts := strings.Split(raw, fieldSeparator)
	if len(parts) < 3 {
		return Package{}, fmt.Errorf("%w: expected at least 3 fields, got %d", ErrMalformed, len(parts))
	}
	name := strings.TrimSpace(parts[0])
	code := strings.TrimSpace(parts[2])
	if name == "" || code == "" {
		return Package{}, fmt.Errorf("%w: missing name or product code", ErrMalformed)
	}
	price, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || price < 0 {
		return Package{}, fmt.Errorf("%w: invalid price %q", ErrMalformed, parts[1])
	}
	pkg := Package{Name: name, Price: price, ProductCode: code, Raw: raw}
	if len(parts) > 3 {
		pkg.Extra = append([]string(nil), parts[3:]...)
	}
	return pkg, nil
}

// ProductCode returns the third delimited field of a package value, or "" when
// the value cannot be parsed.
func ProductCode(raw string) string {
	pkg, err := Parse(raw)
	if err != nil {
		return ""
	}
	return pkg.ProductCode
}

// PrintedReportFee is added to the order rate when hard-copy reports are requested.
const PrintedReportFee = 75

// Rate is the amount charged for quantity units of pkg.
func Rate(pkg Package, quantity int, printedReports bool) int {
	if quantity < 1 {
		quantity = 1
	}
	rate := pkg.Price * quantity
	if printedReports {
		rate += PrintedReportFee
	}
	return rate
}
