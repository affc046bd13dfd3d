package model

// ScanSummary aggregates recent lookups of a pet for its owner.
type ScanSummary struct {
	Total          int64            `json:"total"`
	UniqueVisitors int64            `json:"unique_visitors"`
	Referrers      map[string]int64 `json:"referrers"`
	Recent         []*ScanEvent     `json:"recent"`
}
