package dto

import (
	"time"

	"github.com/petlink/petlink/internal/model"
)

// CampaignRequest represents the body for creating or replacing a campaign.
type CampaignRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Location    string `json:"location"`
	Description string `json:"description"`
	MoreInfo    string `json:"more_info"`
}

// CampaignResponse represents a campaign in API responses.
type CampaignResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	MoreInfo    string    `json:"more_info"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToCampaignResponse converts a Campaign model to CampaignResponse DTO.
func ToCampaignResponse(c *model.Campaign) *CampaignResponse {
	return &CampaignResponse{
		ID:          c.ID,
		Title:       c.Title,
		Date:        c.Date,
		Location:    c.Location,
		Description: c.Description,
		MoreInfo:    c.MoreInfo,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
