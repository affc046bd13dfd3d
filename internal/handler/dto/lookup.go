package dto

import (
	"github.com/petlink/petlink/internal/model"
)

// LookupRequest is the manual code submission.
type LookupRequest struct {
	Code string `json:"code"`
}

// FoundPet is the public subset of a pet shown to whoever found it.
type FoundPet struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Species     string `json:"species"`
	Breed       string `json:"breed"`
	Color       string `json:"color"`
	Sex         string `json:"sex"`
	BirthDate   string `json:"birth_date,omitempty"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

// OwnerContact holds the owner fields; missing values are empty strings.
type OwnerContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// LookupResponse is the public result of resolving a code.
type LookupResponse struct {
	Status           string       `json:"status"`
	Code             string       `json:"code"`
	Pet              FoundPet     `json:"pet"`
	Owner            OwnerContact `json:"owner"`
	ContactAvailable bool         `json:"contact_available"`
	ContactLink      string       `json:"contact_link,omitempty"`
}

// LookupPendingResponse tells the client a lookup is still in flight for
// its session.
type LookupPendingResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
}

// ToLookupResponse converts a resolved view. contactLink is empty when the
// owner has no phone.
func ToLookupResponse(code string, view *model.ResolvedView, contactLink string) *LookupResponse {
	return &LookupResponse{
		Status: "found",
		Code:   code,
		Pet: FoundPet{
			Code:        view.Pet.Code,
			Name:        view.Pet.Name,
			Species:     view.Pet.Species,
			Breed:       view.Pet.Breed,
			Color:       view.Pet.Color,
			Sex:         string(view.Pet.Sex),
			BirthDate:   model.FormatBirthDate(view.Pet.BirthDate),
			Description: view.Pet.Description,
			ImageURL:    view.Pet.ImageURL,
		},
		Owner: OwnerContact{
			Name:  view.Owner.Name,
			Phone: view.Owner.Phone,
			Email: view.Owner.Email,
		},
		ContactAvailable: contactLink != "",
		ContactLink:      contactLink,
	}
}
