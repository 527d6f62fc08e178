package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/diagnostic-booking/internal/beneficiary"
	"github.com/wolfman30/diagnostic-booking/internal/catalog"
	"github.com/wolfman30/diagnostic-booking/internal/slots"
	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
)

const (
	refOrderPrefix = "ORD"

	PayTypePostpaid = "POSTPAID"
	ServiceTypeHome = "H"
	ReportsPrinted  = "Y"
	ReportsDigital  = "N"
)

// NewRefOrderID is the client reference for an order placed at now.
func NewRefOrderID(now time.Time) string {
	return refOrderPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// BuildPayload maps a validated form onto the order-creation request. The
// API key is left blank; the provider client fills it at send time.
func BuildPayload(f Form, refOrderID, source string) (thyrocare.OrderRequest, error) {
	pkg, err := catalog.Parse(f.Package)
	if err != nil {
		return thyrocare.OrderRequest{}, fmt.Errorf("orders: %w", err)
	}
	quantity := f.Quantity
	if quantity < 1 {
		quantity = 1
	}

	primary := f.Primary()
	additional := beneficiary.Additional(primary, f.Beneficiaries)
	if len(additional) > quantity-1 {
		additional = additional[:quantity-1]
	}
	people := append([]beneficiary.Beneficiary{primary}, additional...)
	benData := make([]thyrocare.OrderBeneficiary, 0, len(people))
	for _, p := range people {
		age, _ := strconv.Atoi(strings.TrimSpace(p.Age))
		benData = append(benData, thyrocare.OrderBeneficiary{
			Name:   strings.TrimSpace(p.Name),
			Age:    age,
			Gender: slots.GenderCode(p.Gender),
		})
	}

	reports := ReportsDigital
	if f.PrintedReports {
		reports = ReportsPrinted
	}

	return thyrocare.OrderRequest{
		RefOrderID:     refOrderID,
		OrderBy:        strings.TrimSpace(f.Name),
		Email:          strings.TrimSpace(f.Email),
		Mobile:         strings.TrimSpace(f.Mobile),
		Address:        strings.TrimSpace(f.Address),
		Pincode:        strings.TrimSpace(f.Pincode),
		Product:        pkg.ProductCode,
		ProductName:    pkg.Name,
		Rate:           catalog.Rate(pkg, quantity, f.PrintedReports),
		ApptDate:       strings.TrimSpace(f.AppointmentDate) + " " + slots.StartTime(f.Slot),
		SlotMasterID:   strings.TrimSpace(f.SlotMasterID),
		PayType:        PayTypePostpaid,
		ServiceType:    ServiceTypeHome,
		Reports:        reports,
		BenCount:       quantity,
		BenData:        benData,
		Source:         source,
		ContactConsent: strings.Join(f.ContactPreferences.Channels(), ","),
	}, nil
}
