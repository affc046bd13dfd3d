// Package middleware provides HTTP middleware and request validation for the
// Petlink API.
package middleware

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Validation limits.
const (
	// MaxLookupCodeLength is the maximum length accepted for a looked-up code.
	MaxLookupCodeLength = 64

	// MaxImageURLLength is the maximum length for a pet photo URL.
	MaxImageURLLength = 2048

	// MinPhoneDigits and MaxPhoneDigits bound a reachable phone number.
	MinPhoneDigits = 8
	MaxPhoneDigits = 15
)

// Validation errors.
var (
	ErrLookupCodeTooLong = errors.New("code exceeds maximum length")
	ErrLookupCodeInvalid = errors.New("code contains invalid characters")
	ErrImageURLTooLong   = errors.New("image URL exceeds maximum length")
	ErrImageURLInvalid   = errors.New("image URL is invalid")
	ErrImageURLUnsafe    = errors.New("image URL uses unsafe scheme")
	ErrPhoneInvalid      = errors.New("phone number must have 8 to 15 digits")
)

// validLookupCodePattern matches characters that can appear in a pet code.
var validLookupCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidateLookupCode rejects input that can never match a pet code, so it is
// answered as not found without touching the store. Empty is allowed.
func ValidateLookupCode(code string) error {
	if code == "" {
		return nil
	}
	if len(code) > MaxLookupCodeLength {
		return ErrLookupCodeTooLong
	}
	if !validLookupCodePattern.MatchString(code) {
		return ErrLookupCodeInvalid
	}
	return nil
}

// ValidateImageURL accepts an absolute http(s) URL with a host, as returned
// by the image host. Empty is allowed.
func ValidateImageURL(raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > MaxImageURLLength {
		return ErrImageURLTooLong
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrImageURLInvalid
	}

	// A nested scheme in the path or query can still be followed by a
	// careless client redirect.
	lower := strings.ToLower(raw)
	for _, scheme := range []string{"javascript:", "data:", "vbscript:", "file:"} {
		if strings.Contains(lower, scheme) {
			return ErrImageURLUnsafe
		}
	}
	return nil
}

// ValidatePhone checks that a phone has a plausible number of digits once
// formatting is ignored. Empty is allowed: the owner then has no handoff.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}

	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+()-. ", r):
		default:
			return ErrPhoneInvalid
		}
	}
	if digits < MinPhoneDigits || digits > MaxPhoneDigits {
		return ErrPhoneInvalid
	}
	return nil
}
