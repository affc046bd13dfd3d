package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/petlink/petlink/internal/cache"
	"github.com/petlink/petlink/internal/metrics"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/repository"
)

// maxCodeLength caps lookup input; no allocated code comes close.
const maxCodeLength = 64

// ResolutionStatus is the outcome of a lookup that did not fail.
type ResolutionStatus int

const (
	ResolutionNotFound ResolutionStatus = iota
	ResolutionFound
)

// String returns a lowercase label for logs and metrics.
func (s ResolutionStatus) String() string {
	if s == ResolutionFound {
		return metrics.LookupFound
	}
	return metrics.LookupNotFound
}

// Resolution is the typed result of Resolve. View is set only when found.
type Resolution struct {
	Status ResolutionStatus
	Code   string
	View   *model.ResolvedView
}

// Found reports whether the code matched a pet.
func (r Resolution) Found() bool {
	return r.Status == ResolutionFound && r.View != nil
}

// PetReader fetches pets by code.
type PetReader interface {
	GetPet(ctx context.Context, code string) (*model.Pet, error)
}

// AccountReader fetches accounts by ID.
type AccountReader interface {
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
}

// PetCache is the shared pet cache consulted before the store.
// Backfills carry the generation read before the store so that an eviction
// racing the read wins.
type PetCache interface {
	GetPet(ctx context.Context, code string) (*model.Pet, error)
	SetPet(ctx context.Context, pet *model.Pet) error
	DeletePet(ctx context.Context, code string) error
	IsNegativelyCached(ctx context.Context, code string) (bool, error)
	PetGeneration(ctx context.Context, code string) (int64, error)
	BackfillPet(ctx context.Context, pet *model.Pet, gen int64) error
	BackfillMissing(ctx context.Context, code string, gen int64) error
}

// Resolver turns a public pet code into a pet plus owner contact view.
type Resolver struct {
	pets     PetReader
	accounts AccountReader
	cache    PetCache
	contacts *ContactCache
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// ResolverDeps collects Resolver collaborators. Cache and Contacts are optional.
type ResolverDeps struct {
	Pets     PetReader
	Accounts AccountReader
	Cache    PetCache
	Contacts *ContactCache
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(deps ResolverDeps) *Resolver {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Resolver{
		pets:     deps.Pets,
		accounts: deps.Accounts,
		cache:    deps.Cache,
		contacts: deps.Contacts,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With("component", "service.resolver"),
	}
}

// Resolve looks up a code. A missing pet is a ResolutionNotFound result, not
// an error; only store failures are returned as ErrStoreUnavailable. Owner
// lookup failures degrade to empty contact fields.
func (r *Resolver) Resolve(ctx context.Context, code string) (Resolution, error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveLookupDuration(time.Since(start))
	}()

	code = strings.TrimSpace(code)
	if code == "" || len(code) > maxCodeLength {
		r.metrics.IncLookupResult(metrics.LookupNotFound)
		return Resolution{Status: ResolutionNotFound, Code: code}, nil
	}

	pet, err := r.loadPet(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrPetNotFound) {
			r.metrics.IncLookupResult(metrics.LookupNotFound)
			return Resolution{Status: ResolutionNotFound, Code: code}, nil
		}
		r.metrics.IncLookupResult(metrics.LookupError)
		return Resolution{Code: code}, storeError("get pet", err)
	}

	view := &model.ResolvedView{
		Pet:   *pet,
		Owner: r.ownerContact(ctx, pet),
	}

	r.metrics.IncLookupResult(metrics.LookupFound)
	return Resolution{Status: ResolutionFound, Code: code, View: view}, nil
}

// loadPet reads through the shared cache. Cache failures fall back to the store.
func (r *Resolver) loadPet(ctx context.Context, code string) (*model.Pet, error) {
	if r.cache == nil {
		return r.pets.GetPet(ctx, code)
	}

	pet, err := r.cache.GetPet(ctx, code)
	if err == nil {
		r.metrics.IncLookupCacheHit()
		return pet, nil
	}

	if errors.Is(err, cache.ErrCacheMiss) {
		r.metrics.IncLookupCacheMiss()
		if neg, negErr := r.cache.IsNegativelyCached(ctx, code); negErr == nil && neg {
			return nil, repository.ErrPetNotFound
		}
	} else {
		r.logger.Debug("pet_cache_unavailable", "code", code, "error", err)
	}

	gen, genErr := r.cache.PetGeneration(ctx, code)

	pet, err = r.pets.GetPet(ctx, code)
	if err != nil && !errors.Is(err, repository.ErrPetNotFound) {
		return nil, err
	}
	if genErr != nil {
		// Without a generation the write cannot be guarded; skip it.
		return pet, err
	}

	var fillErr error
	if err != nil {
		fillErr = r.cache.BackfillMissing(ctx, code, gen)
	} else {
		fillErr = r.cache.BackfillPet(ctx, pet, gen)
	}
	switch {
	case errors.Is(fillErr, cache.ErrStaleBackfill):
		r.logger.Debug("pet_cache_backfill_skipped", "code", code)
	case fillErr != nil:
		r.logger.Debug("pet_cache_backfill_failed", "code", code, "error", fillErr)
	}

	return pet, err
}

// ownerContact returns the owner's contact or an empty one. Failures are
// logged at warn level and never fail the lookup.
func (r *Resolver) ownerContact(ctx context.Context, pet *model.Pet) model.Contact {
	if pet.OwnerID == "" {
		r.logger.Warn("lookup_owner_missing", "code", pet.Code)
		return model.Contact{}
	}

	if contact, ok := r.contacts.Get(pet.OwnerID); ok {
		return contact
	}

	owner, err := r.accounts.GetAccountByID(ctx, pet.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			r.logger.Warn("lookup_owner_not_found", "code", pet.Code, "owner_id", pet.OwnerID)
		} else {
			r.logger.Warn("lookup_owner_unavailable", "code", pet.Code, "owner_id", pet.OwnerID, "error", err)
		}
		return model.Contact{}
	}

	contact := owner.Contact()
	r.contacts.Set(pet.OwnerID, contact)
	return contact
}
