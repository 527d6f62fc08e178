package catalog

import (
	"encoding/json"
	"net/http"
)

// ListPackagesResponse is returned by GET /api/packages.
type ListPackagesResponse struct {
	Packages []Offering `json:"packages"`
	// PrintedReportFee is the surcharge for hard-copy reports, in rupees.
	PrintedReportFee int `json:"printedReportFee"`
}

// ListPackages handles GET /api/packages requests
func ListPackages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_ = json.NewEncoder(w).Encode(ListPackagesResponse{
		Packages:         Offerings(),
		PrintedReportFee: PrintedReportFee,
	})
}
