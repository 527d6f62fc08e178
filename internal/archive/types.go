package archive

import (
	"encoding/json"
	"time"
)

// OrderSnapshot is the record written to S3 for every submission, confirmed or not.
type OrderSnapshot struct {
	Version     string          `json:"version"`
	RefOrderID  string          `json:"ref_order_id"`
	OrderNo     string          `json:"order_no,omitempty"`
	Outcome     string          `json:"outcome"` // confirmed|fallback
	Reason      string          `json:"reason,omitempty"`
	MobileHash  string          `json:"mobile_hash"`
	PackageCode string          `json:"package_code"`
	Quantity    int             `json:"quantity"`
	Rate        int             `json:"rate"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	RefOrderID  string `json:"ref_order_id"`
	OrderNo     string `json:"order_no,omitempty"`
	S3Key       string `json:"s3_key"`
	Outcome     string `json:"outcome"`
	PackageCode string `json:"package_code"`
	ArchivedAt  string `json:"archived_at"`
}
