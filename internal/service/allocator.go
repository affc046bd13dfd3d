package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/petlink/petlink/internal/metrics"
)

const (
	// DefaultCodePrefix is prepended to every pet code.
	DefaultCodePrefix = "PET"
	// DefaultMaxAttempts bounds candidate draws per allocation.
	DefaultMaxAttempts = 50

	codeMin   = 100000
	codeRange = 900000 // 100000..999999
)

// CodeChecker reports whether a pet code is already taken.
type CodeChecker interface {
	PetCodeExists(ctx context.Context, code string) (bool, error)
}

// AllocatorConfig configures an Allocator.
type AllocatorConfig struct {
	Prefix      string
	MaxAttempts int
}

// Allocator mints pet codes by bounded rejection sampling against the store.
// It reserves nothing; the caller persists the record and must handle a
// primary-key conflict if a concurrent allocation drew the same code.
type Allocator struct {
	store       CodeChecker
	prefix      string
	maxAttempts int
	draw        func() (int64, error)
	metrics     metrics.Recorder
}

// NewAllocator creates an Allocator. Zero config values fall back to defaults.
func NewAllocator(store CodeChecker, cfg AllocatorConfig, recorder metrics.Recorder) *Allocator {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultCodePrefix
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Allocator{
		store:       store,
		prefix:      cfg.Prefix,
		maxAttempts: cfg.MaxAttempts,
		draw:        cryptoDraw,
		metrics:     recorder,
	}
}

// Prefix returns the configured code prefix.
func (a *Allocator) Prefix() string {
	return a.prefix
}

// Allocate returns a code that did not exist at the time of its check.
// Returns ErrAllocationExhausted after MaxAttempts taken candidates and
// ErrStoreUnavailable if any existence check fails.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := a.draw()
		if err != nil {
			return "", fmt.Errorf("draw pet code: %w", err)
		}
		candidate := a.format(n)

		exists, err := a.store.PetCodeExists(ctx, candidate)
		if err != nil {
			return "", storeError("check pet code", err)
		}
		if !exists {
			a.metrics.ObserveAllocationAttempts(attempt)
			return candidate, nil
		}
	}

	a.metrics.ObserveAllocationAttempts(a.maxAttempts)
	a.metrics.IncAllocationExhausted()
	return "", fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, a.maxAttempts)
}

func (a *Allocator) format(n int64) string {
	return fmt.Sprintf("%s%06d", a.prefix, n)
}

// CodePattern returns a regexp matching codes produced with prefix.
func CodePattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\d{6}$`)
}

// cryptoDraw returns a uniform value in [100000, 999999] from crypto/rand.
func cryptoDraw() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return 0, err
	}
	return codeMin + n.Int64(), nil
}
