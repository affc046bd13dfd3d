package model

import "time"

// Campaign is an announcement managed by administrators (adoption fairs,
// vaccination drives) and listed publicly.
type Campaign struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"` // free text as entered by the admin
	Location    string    `json:"location"`
	Description string    `json:"description"`
	MoreInfo    string    `json:"more_info"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
