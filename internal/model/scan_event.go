package model

import "time"

// ScanEvent records a public lookup of a pet code.
type ScanEvent struct {
	ID          string    `json:"id"`
	EventID     string    `json:"-"` // Redis stream ID, idempotency key
	PetCode     string    `json:"pet_code"`
	Referrer    string    `json:"referrer,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	VisitorHash string    `json:"visitor_hash"`
	CountryCode string    `json:"country_code,omitempty"`
	ScannedAt   time.Time `json:"scanned_at"`
}
