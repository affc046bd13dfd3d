package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/petlink/petlink/internal/cache"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/repository"
)

var errBoom = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory pet and account store.
type fakeStore struct {
	mu       sync.Mutex
	pets     map[string]*model.Pet
	accounts map[string]*model.Account

	existsCalls int
	getCalls    int
	existsErr   error
	getPetErr   error
	accountErr  error
	createErrs  []error // consumed one per CreatePet call

	// afterGetPet runs once, after the next GetPet has read the pet.
	afterGetPet func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pets:     make(map[string]*model.Pet),
		accounts: make(map[string]*model.Account),
	}
}

func (f *fakeStore) PetCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.pets[code]
	return ok, nil
}

func (f *fakeStore) CreatePet(_ context.Context, pet *model.Pet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := f.pets[pet.Code]; ok {
		return repository.ErrPetCodeTaken
	}
	cp := *pet
	f.pets[pet.Code] = &cp
	return nil
}

func (f *fakeStore) GetPet(_ context.Context, code string) (*model.Pet, error) {
	f.mu.Lock()
	f.getCalls++
	hook := f.afterGetPet
	f.afterGetPet = nil
	pet, ok := f.pets[code]
	var cp model.Pet
	if ok {
		cp = *pet
	}
	err := f.getPetErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrPetNotFound
	}
	return &cp, nil
}

func (f *fakeStore) UpdatePet(_ context.Context, pet *model.Pet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pets[pet.Code]; !ok {
		return repository.ErrPetNotFound
	}
	cp := *pet
	f.pets[pet.Code] = &cp
	return nil
}

func (f *fakeStore) DeletePet(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pets[code]; !ok {
		return repository.ErrPetNotFound
	}
	delete(f.pets, code)
	return nil
}

func (f *fakeStore) ListPetsByOwner(_ context.Context, ownerID string) ([]*model.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Pet, 0)
	for _, pet := range f.pets {
		if pet.OwnerID == ownerID {
			cp := *pet
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return repository.ErrEmailTaken
		}
	}
	cp := *account
	f.accounts[account.ID] = &cp
	return nil
}

func (f *fakeStore) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (f *fakeStore) UpdateAccountProfile(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[account.ID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Name = account.Name
	a.Phone = account.Phone
	return nil
}

func (f *fakeStore) SetAccountRole(_ context.Context, id string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Role = role
	return nil
}

func (f *fakeStore) addAccount(a *model.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[a.ID] = a
}

func (f *fakeStore) addPet(p *model.Pet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pets[p.Code] = p
}

// fakePetCache is an in-memory stand-in for the Redis pet cache.
// Every write or eviction bumps the code's generation, like the real one.
type fakePetCache struct {
	mu       sync.Mutex
	pets     map[string]*model.Pet
	negative map[string]bool
	gens     map[string]int64
	err      error
}

func newFakePetCache() *fakePetCache {
	return &fakePetCache{
		pets:     make(map[string]*model.Pet),
		negative: make(map[string]bool),
		gens:     make(map[string]int64),
	}
}

func (c *fakePetCache) GetPet(_ context.Context, code string) (*model.Pet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	pet, ok := c.pets[code]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *pet
	return &cp, nil
}

func (c *fakePetCache) SetPet(_ context.Context, pet *model.Pet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.gens[pet.Code]++
	cp := *pet
	c.pets[pet.Code] = &cp
	delete(c.negative, pet.Code)
	return nil
}

func (c *fakePetCache) DeletePet(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[code]++
	delete(c.pets, code)
	delete(c.negative, code)
	return nil
}

func (c *fakePetCache) IsNegativelyCached(_ context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	return c.negative[code], nil
}

func (c *fakePetCache) PetGeneration(_ context.Context, code string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.gens[code], nil
}

func (c *fakePetCache) BackfillPet(_ context.Context, pet *model.Pet, gen int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.gens[pet.Code] != gen {
		return cache.ErrStaleBackfill
	}
	cp := *pet
	c.pets[pet.Code] = &cp
	delete(c.negative, pet.Code)
	return nil
}

func (c *fakePetCache) BackfillMissing(_ context.Context, code string, gen int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.gens[code] != gen {
		return cache.ErrStaleBackfill
	}
	c.negative[code] = true
	return nil
}

// fakeScans records scan history operations.
type fakeScans struct {
	events  map[string][]*model.ScanEvent
	deleted []string
}

func (s *fakeScans) ListRecent(_ context.Context, code string, since time.Time, limit int) ([]*model.ScanEvent, error) {
	var events []*model.ScanEvent
	for _, e := range s.events[code] {
		if !e.ScannedAt.Before(since) {
			events = append(events, e)
		}
	}
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *fakeScans) DeleteForPet(_ context.Context, code string) error {
	s.deleted = append(s.deleted, code)
	delete(s.events, code)
	return nil
}

// fakeUploader returns a fixed URL or error.
type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (u *fakeUploader) Upload(_ context.Context, _ string, _ []byte) (string, error) {
	u.calls++
	return u.url, u.err
}

// fakeRoles is an in-memory RoleCache.
type fakeRoles struct {
	roles   map[string]model.Role
	deleted []string
}

func (r *fakeRoles) GetSessionRole(_ context.Context, id string) (model.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return role, nil
}

func (r *fakeRoles) SetSessionRole(_ context.Context, id string, role model.Role) error {
	r.roles[id] = role
	return nil
}

func (r *fakeRoles) DeleteSessionRole(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	delete(r.roles, id)
	return nil
}

// sequenceDraw returns the given values in order, then repeats the last.
func sequenceDraw(values ...int64) func() (int64, error) {
	i := 0
	return func() (int64, error) {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v, nil
	}
}
