package dto

import (
	"time"

	"github.com/petlink/petlink/internal/model"
)

// PetRequest represents the body for registering or replacing a pet.
// Multipart registrations carry the same fields as form values.
type PetRequest struct {
	Name        string `json:"name"`
	Species     string `json:"species"`
	Breed       string `json:"breed"`
	Color       string `json:"color"`
	Sex         string `json:"sex"`
	BirthDate   string `json:"birth_date,omitempty"` // YYYY-MM-DD
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

// PetResponse represents a pet in owner-facing responses.
type PetResponse struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Species     string    `json:"species"`
	Breed       string    `json:"breed"`
	Color       string    `json:"color"`
	Sex         string    `json:"sex"`
	BirthDate   string    `json:"birth_date,omitempty"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	OwnerID     string    `json:"owner_id"`
	LookupURL   string    `json:"lookup_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToPetResponse converts a Pet model to PetResponse DTO.
func ToPetResponse(pet *model.Pet, lookupURL string) *PetResponse {
	return &PetResponse{
		Code:        pet.Code,
		Name:        pet.Name,
		Species:     pet.Species,
		Breed:       pet.Breed,
		Color:       pet.Color,
		Sex:         string(pet.Sex),
		BirthDate:   model.FormatBirthDate(pet.BirthDate),
		Description: pet.Description,
		ImageURL:    pet.ImageURL,
		OwnerID:     pet.OwnerID,
		LookupURL:   lookupURL,
		CreatedAt:   pet.CreatedAt,
		UpdatedAt:   pet.UpdatedAt,
	}
}

// ScanResponse is one recorded lookup, without the visitor hash.
type ScanResponse struct {
	Referrer    string    `json:"referrer,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// ScanSummaryResponse aggregates recent lookups of a pet.
type ScanSummaryResponse struct {
	Total          int64            `json:"total"`
	UniqueVisitors int64            `json:"unique_visitors"`
	Referrers      map[string]int64 `json:"referrers"`
	Recent         []ScanResponse   `json:"recent"`
}

// ToScanSummaryResponse converts a ScanSummary to its DTO.
func ToScanSummaryResponse(s *model.ScanSummary) *ScanSummaryResponse {
	resp := &ScanSummaryResponse{
		Total:          s.Total,
		UniqueVisitors: s.UniqueVisitors,
		Referrers:      s.Referrers,
		Recent:         make([]ScanResponse, 0, len(s.Recent)),
	}
	if resp.Referrers == nil {
		resp.Referrers = map[string]int64{}
	}
	for _, e := range s.Recent {
		resp.Recent = append(resp.Recent, ScanResponse{
			Referrer:    e.Referrer,
			CountryCode: e.CountryCode,
			ScannedAt:   e.ScannedAt,
		})
	}
	return resp
}
