package entity

import (
	"encoding/json"
	"time"
)

// Location is a WGS84 coordinate captured when proof is submitted.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// VendorProof is the vendor's delivery evidence. Written once, never updated.
type VendorProof struct {
	VendorID    string    `json:"vendor_id"`
	Images      []string  `json:"images"`
	Location    Location  `json:"location"`
	Description string    `json:"description"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AIVerification is the recorded oracle verdict. Written once, pass or fail.
type AIVerification struct {
	Raw          json.RawMessage `json:"raw,omitempty"`
	Authenticity float64         `json:"authenticity"`
	Anomalies    []string        `json:"anomalies"`
	Verified     bool            `json:"verified"`
	Threshold    float64         `json:"threshold"`
	VerifiedAt   time.Time       `json:"verified_at"`
}
