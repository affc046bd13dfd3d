package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/petlink/petlink/internal/metrics"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/repository"
)

const (
	maxNameLength        = 100
	maxShortFieldLength  = 60
	maxDescriptionLength = 2000

	// ScanHistoryLimit is how many recent scans an owner can see.
	ScanHistoryLimit = 50

	// DefaultQRSize is the QR PNG edge in pixels.
	DefaultQRSize = 512
)

// PetStore is the pet persistence used by PetService.
type PetStore interface {
	CreatePet(ctx context.Context, pet *model.Pet) error
	GetPet(ctx context.Context, code string) (*model.Pet, error)
	UpdatePet(ctx context.Context, pet *model.Pet) error
	DeletePet(ctx context.Context, code string) error
	ListPetsByOwner(ctx context.Context, ownerID string) ([]*model.Pet, error)
}

// ScanStore reads and clears the scan history of a pet.
type ScanStore interface {
	ListRecent(ctx context.Context, petCode string, since time.Time, limit int) ([]*model.ScanEvent, error)
	DeleteForPet(ctx context.Context, petCode string) error
}

// ImageUploader hosts a pet photo and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// CodeAllocator mints pet codes; satisfied by *Allocator.
type CodeAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// PetService handles pet registration and owner-side management.
type PetService struct {
	pets      PetStore
	allocator CodeAllocator
	cache     PetCache
	scans     ScanStore
	images    ImageUploader
	baseURL   string
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// PetServiceDeps collects PetService collaborators. Cache, Scans and Images
// are optional.
type PetServiceDeps struct {
	Pets      PetStore
	Allocator CodeAllocator
	Cache     PetCache
	Scans     ScanStore
	Images    ImageUploader
	BaseURL   string
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// NewPetService creates a new PetService.
func NewPetService(deps PetServiceDeps) *PetService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &PetService{
		pets:      deps.Pets,
		allocator: deps.Allocator,
		cache:     deps.Cache,
		scans:     deps.Scans,
		images:    deps.Images,
		baseURL:   strings.TrimSuffix(deps.BaseURL, "/"),
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("component", "service.pet"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ImageUpload is a photo sent with a registration or update.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// PetInput carries the editable pet fields.
type PetInput struct {
	Name        string
	Species     string
	Breed       string
	Color       string
	Sex         model.Sex
	BirthDate   *time.Time
	Description string
	ImageURL    string
	Image       *ImageUpload
}

// Register validates the input, hosts the photo if one was sent, allocates
// a code and persists the pet. A code taken by a concurrent registration
// between check and insert triggers one fresh allocation.
func (s *PetService) Register(ctx context.Context, ownerID string, input PetInput) (*model.Pet, error) {
	if ownerID == "" {
		return nil, ErrForbidden
	}
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	imageURL, err := s.resolveImage(ctx, input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pet := &model.Pet{
		Name:        input.Name,
		Species:     input.Species,
		Breed:       input.Breed,
		Color:       input.Color,
		Sex:         input.Sex,
		BirthDate:   input.BirthDate,
		Description: input.Description,
		ImageURL:    imageURL,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	const maxInserts = 2
	for i := 1; ; i++ {
		code, err := s.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}
		pet.Code = code

		err = s.pets.CreatePet(ctx, pet)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrPetCodeTaken) && i < maxInserts {
			s.logger.Warn("pet_code_conflict", "code", code)
			continue
		}
		if errors.Is(err, repository.ErrPetCodeTaken) {
			return nil, fmt.Errorf("%w: code conflict on retry", ErrAllocationExhausted)
		}
		return nil, storeError("create pet", err)
	}

	s.metrics.IncPetRegistered()
	s.cachePet(ctx, pet)

	s.logger.Info("pet_registered", "code", pet.Code, "owner_id", ownerID)
	return pet, nil
}

// Get returns a pet visible to the actor (its owner or an admin).
func (s *PetService) Get(ctx context.Context, actor *model.Session, code string) (*model.Pet, error) {
	pet, err := s.pets.GetPet(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, repository.ErrPetNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, storeError("get pet", err)
	}

	if !canManage(actor, pet) {
		return nil, ErrForbidden
	}

	return pet, nil
}

// ListByOwner returns the owner's pets, newest first.
func (s *PetService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Pet, error) {
	pets, err := s.pets.ListPetsByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeError("list pets", err)
	}
	return pets, nil
}

// Update overwrites the editable fields. Code and owner never change.
func (s *PetService) Update(ctx context.Context, actor *model.Session, code string, input PetInput) (*model.Pet, error) {
	pet, err := s.Get(ctx, actor, code)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	if input.Image != nil || input.ImageURL != "" {
		imageURL, err := s.resolveImage(ctx, input)
		if err != nil {
			return nil, err
		}
		pet.ImageURL = imageURL
	}

	pet.Name = input.Name
	pet.Species = input.Species
	pet.Breed = input.Breed
	pet.Color = input.Color
	pet.Sex = input.Sex
	pet.BirthDate = input.BirthDate
	pet.Description = input.Description
	pet.UpdatedAt = s.now()

	if err := s.pets.UpdatePet(ctx, pet); err != nil {
		if errors.Is(err, repository.ErrPetNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, storeError("update pet", err)
	}

	s.metrics.IncPetUpdated()
	s.evict(ctx, pet.Code)

	s.logger.Info("pet_updated", "code", pet.Code)
	return pet, nil
}

// Delete removes a pet and its scan history. Owner or admin only.
func (s *PetService) Delete(ctx context.Context, actor *model.Session, code string) error {
	pet, err := s.Get(ctx, actor, code)
	if err != nil {
		return err
	}

	// The code can be allocated again, so history must not outlive the pet.
	if s.scans != nil {
		if err := s.scans.DeleteForPet(ctx, pet.Code); err != nil {
			return storeError("delete scans", err)
		}
	}

	if err := s.pets.DeletePet(ctx, pet.Code); err != nil {
		if errors.Is(err, repository.ErrPetNotFound) {
			return ErrPetNotFound
		}
		return storeError("delete pet", err)
	}

	s.metrics.IncPetDeleted()
	s.evict(ctx, pet.Code)

	s.logger.Info("pet_deleted", "code", pet.Code)
	return nil
}

// LookupURL returns the public lookup link printed on the collar.
func (s *PetService) LookupURL(code string) string {
	return s.baseURL + "/encontrar-pet?codigo=" + url.QueryEscape(code)
}

// QRCode renders the lookup URL of a pet the actor manages as a PNG.
func (s *PetService) QRCode(ctx context.Context, actor *model.Session, code string, size int) ([]byte, error) {
	pet, err := s.Get(ctx, actor, code)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultQRSize
	}

	png, err := qrcode.Encode(s.LookupURL(pet.Code), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// Scans summarizes the most recent lookups of a pet for its owner.
func (s *PetService) Scans(ctx context.Context, actor *model.Session, code string) (*model.ScanSummary, error) {
	pet, err := s.Get(ctx, actor, code)
	if err != nil {
		return nil, err
	}
	if s.scans == nil {
		return repository.Summarize(nil), nil
	}

	// Events still queued when a previous holder of the code was deleted
	// land after its history was cleared; CreatedAt keeps them out.
	events, err := s.scans.ListRecent(ctx, pet.Code, pet.CreatedAt, ScanHistoryLimit)
	if err != nil {
		return nil, storeError("list scans", err)
	}
	return repository.Summarize(events), nil
}

func (s *PetService) validate(input *PetInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Species = strings.TrimSpace(input.Species)
	input.Breed = strings.TrimSpace(input.Breed)
	input.Color = strings.TrimSpace(input.Color)
	input.Description = strings.TrimSpace(input.Description)
	input.ImageURL = strings.TrimSpace(input.ImageURL)

	if input.Name == "" {
		return ErrPetNameRequired
	}
	if input.Species == "" {
		return ErrSpeciesRequired
	}
	if !input.Sex.IsValid() {
		return ErrInvalidSex
	}
	if input.BirthDate != nil && input.BirthDate.After(s.now()) {
		return ErrBirthDateInFuture
	}
	if len(input.Name) > maxNameLength ||
		len(input.Species) > maxShortFieldLength ||
		len(input.Breed) > maxShortFieldLength ||
		len(input.Color) > maxShortFieldLength ||
		len(input.Description) > maxDescriptionLength {
		return ErrFieldTooLong
	}
	return nil
}

// resolveImage uploads the photo when one was sent, otherwise keeps the URL.
func (s *PetService) resolveImage(ctx context.Context, input PetInput) (string, error) {
	if input.Image == nil || len(input.Image.Data) == 0 {
		return input.ImageURL, nil
	}
	if s.images == nil {
		return "", ErrImageUploadOff
	}

	hosted, err := s.images.Upload(ctx, input.Image.Filename, input.Image.Data)
	if err != nil {
		s.logger.Error("pet_image_upload_failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrImageUploadFailed, err)
	}
	return hosted, nil
}

func (s *PetService) cachePet(ctx context.Context, pet *model.Pet) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetPet(ctx, pet); err != nil {
		// A stale negative entry would hide the new pet; drop it at least.
		_ = s.cache.DeletePet(ctx, pet.Code)
	}
}

func (s *PetService) evict(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePet(ctx, code); err != nil {
		s.logger.Warn("pet_cache_evict_failed", "code", code, "error", err)
	}
}

func canManage(actor *model.Session, pet *model.Pet) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin() || pet.IsOwnedBy(actor.AccountID)
}
