// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
)

// Service errors.
var (
	ErrStoreUnavailable    = errors.New("record store unavailable")
	ErrAllocationExhausted = errors.New("could not allocate a free pet code")
	ErrNoContactAvailable  = errors.New("owner has no phone for contact")

	ErrPetNotFound      = errors.New("pet not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrForbidden        = errors.New("not allowed to access this resource")

	ErrPetNameRequired   = errors.New("pet name is required")
	ErrSpeciesRequired   = errors.New("species is required")
	ErrInvalidSex        = errors.New("sex must be male or female")
	ErrBirthDateInFuture = errors.New("birth date cannot be in the future")
	ErrFieldTooLong      = errors.New("field exceeds maximum length")
	ErrImageUploadFailed = errors.New("image upload failed")
	ErrImageUploadOff    = errors.New("image uploads are not configured")

	ErrNameRequired       = errors.New("name is required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = errors.New("password must have at least 6 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role")

	ErrTitleRequired = errors.New("campaign title is required")
)

// storeError wraps a transport failure as ErrStoreUnavailable while keeping
// the cause. Context errors pass through untouched so callers can tell a
// cancelled request from a broken store.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
