// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// Sex is the biological sex recorded for a pet.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// IsValid checks if the sex value is one of the supported options.
func (s Sex) IsValid() bool {
	return s == SexMale || s == SexFemale
}

// Pet represents a registered pet. Code is the public identifier printed on
// the collar and doubles as the storage key; it never changes after creation.
type Pet struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Species     string     `json:"species"`
	Breed       string     `json:"breed"`
	Color       string     `json:"color"`
	Sex         Sex        `json:"sex"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsOwnedBy reports whether the pet belongs to the given account.
func (p *Pet) IsOwnedBy(accountID string) bool {
	return accountID != "" && p.OwnerID == accountID
}

// CachedPet represents pet data stored in a Redis hash.
// Uses string types for Redis hash compatibility.
type CachedPet struct {
	Name        string `redis:"name"`
	Species     string `redis:"species"`
	Breed       string `redis:"breed"`
	Color       string `redis:"color"`
	Sex         string `redis:"sex"`
	BirthDate   string `redis:"birth_date"` // YYYY-MM-DD or empty
	Description string `redis:"description"`
	ImageURL    string `redis:"image_url"`
	OwnerID     string `redis:"owner_id"`
	CreatedAt   string `redis:"created_at"` // Unix timestamp
	UpdatedAt   string `redis:"updated_at"` // Unix timestamp
}

// birthDateLayout is the calendar-date layout used for birth dates.
const birthDateLayout = "2006-01-02"

// ToPet converts CachedPet to the Pet domain model.
func (c *CachedPet) ToPet(code string) *Pet {
	pet := &Pet{
		Code:        code,
		Name:        c.Name,
		Species:     c.Species,
		Breed:       c.Breed,
		Color:       c.Color,
		Sex:         Sex(c.Sex),
		Description: c.Description,
		ImageURL:    c.ImageURL,
		OwnerID:     c.OwnerID,
	}

	if c.BirthDate != "" {
		if t, err := time.Parse(birthDateLayout, c.BirthDate); err == nil {
			pet.BirthDate = &t
		}
	}
	if ts, err := strconv.ParseInt(c.CreatedAt, 10, 64); err == nil {
		pet.CreatedAt = time.Unix(ts, 0).UTC()
	}
	if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
		pet.UpdatedAt = time.Unix(ts, 0).UTC()
	}

	return pet
}

// ToCachedPet converts Pet to its cached representation.
func (p *Pet) ToCachedPet() *CachedPet {
	cached := &CachedPet{
		Name:        p.Name,
		Species:     p.Species,
		Breed:       p.Breed,
		Color:       p.Color,
		Sex:         string(p.Sex),
		Description: p.Description,
		ImageURL:    p.ImageURL,
		OwnerID:     p.OwnerID,
		CreatedAt:   strconv.FormatInt(p.CreatedAt.Unix(), 10),
		UpdatedAt:   strconv.FormatInt(p.UpdatedAt.Unix(), 10),
	}

	if p.BirthDate != nil {
		cached.BirthDate = p.BirthDate.Format(birthDateLayout)
	}

	return cached
}

// ParseBirthDate parses a YYYY-MM-DD date. Empty input yields nil.
func ParseBirthDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(birthDateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatBirthDate renders a birth date as YYYY-MM-DD, or empty if unset.
func FormatBirthDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(birthDateLayout)
}
