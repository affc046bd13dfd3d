package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/petlink/petlink/internal/model"
)

const (
	// DefaultCountryCode is the calling code used when none is configured.
	DefaultCountryCode = "55"

	contactBaseURL  = "https://wa.me/"
	contactTemplate = "Olá! Encontrei seu pet %s com o código %s"
)

// BuildContactLink formats a prefilled WhatsApp link for the view's owner.
// Returns ErrNoContactAvailable when the phone has no digits. A phone entered
// with a leading "+" is taken as already international and not prefixed.
func BuildContactLink(view *model.ResolvedView, countryCode string) (string, error) {
	if view == nil {
		return "", ErrNoContactAvailable
	}

	phone := strings.TrimSpace(view.Owner.Phone)
	digits := digitsOnly(phone)
	if digits == "" {
		return "", ErrNoContactAvailable
	}

	if !strings.HasPrefix(phone, "+") {
		cc := digitsOnly(countryCode)
		if cc == "" {
			cc = DefaultCountryCode
		}
		digits = cc + digits
	}

	text := fmt.Sprintf(contactTemplate, view.Pet.Name, view.Pet.Code)
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")

	return contactBaseURL + digits + "?text=" + escaped, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
