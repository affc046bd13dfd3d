package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petlink/petlink/internal/metrics"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/repository"
)

type petFixture struct {
	store    *fakeStore
	cache    *fakePetCache
	scans    *fakeScans
	images   *fakeUploader
	recorder *metrics.InMemoryRecorder
	pets     *PetService
	resolver *Resolver
}

func newPetFixture(t *testing.T) *petFixture {
	t.Helper()

	f := &petFixture{
		store:    newFakeStore(),
		cache:    newFakePetCache(),
		scans:    &fakeScans{events: make(map[string][]*model.ScanEvent)},
		images:   &fakeUploader{url: "https://i.ibb.co/abc/rex.jpg"},
		recorder: metrics.NewInMemory(),
	}
	f.store.addAccount(&model.Account{ID: "owner-1", Name: "Ana", Phone: "11988887777", Email: "ana@example.com", Role: model.RoleUser})

	f.pets = NewPetService(PetServiceDeps{
		Pets:      f.store,
		Allocator: NewAllocator(f.store, AllocatorConfig{}, f.recorder),
		Cache:     f.cache,
		Scans:     f.scans,
		Images:    f.images,
		BaseURL:   "https://petlink.example/",
		Metrics:   f.recorder,
		Logger:    discardLogger(),
	})
	f.resolver = NewResolver(ResolverDeps{
		Pets:     f.store,
		Accounts: f.store,
		Cache:    f.cache,
		Metrics:  f.recorder,
		Logger:   discardLogger(),
	})
	return f
}

func validInput() PetInput {
	return PetInput{Name: " Rex ", Species: "dog", Breed: "SRD", Sex: model.SexMale}
}

func owner() *model.Session {
	return &model.Session{AccountID: "owner-1", Role: model.RoleUser}
}

func TestPetService_RegisterThenResolve(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	ctx := context.Background()

	pet, err := f.pets.Register(ctx, "owner-1", validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !CodePattern(DefaultCodePrefix).MatchString(pet.Code) {
		t.Errorf("code %q has wrong format", pet.Code)
	}
	if pet.Name != "Rex" {
		t.Errorf("name should be trimmed, got %q", pet.Name)
	}

	res, err := f.resolver.Resolve(ctx, pet.Code)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found() {
		t.Fatal("registered pet should resolve")
	}
	if res.View.Pet.Name != "Rex" || res.View.Owner.Name != "Ana" {
		t.Errorf("view = %+v", res.View)
	}
	if f.recorder.Snapshot().PetsRegistered != 1 {
		t.Error("registration should be recorded")
	}
}

func TestPetService_RegisterClearsNegativeCache(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	ctx := context.Background()

	alloc := &stubAllocator{codes: []string{"PET555555"}}
	f.pets.allocator = alloc

	if res, _ := f.resolver.Resolve(ctx, "PET555555"); res.Found() {
		t.Fatal("code should not resolve before registration")
	}

	if _, err := f.pets.Register(ctx, "owner-1", validInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := f.resolver.Resolve(ctx, "PET555555")
	if err != nil || !res.Found() {
		t.Fatalf("new pet should resolve immediately: found=%v err=%v", res.Found(), err)
	}
}

// stubAllocator hands out a fixed sequence of codes.
type stubAllocator struct {
	codes []string
	calls int
}

func (a *stubAllocator) Allocate(context.Context) (string, error) {
	code := a.codes[min(a.calls, len(a.codes)-1)]
	a.calls++
	return code, nil
}

func TestPetService_RegisterRetriesCodeConflict(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	alloc := &stubAllocator{codes: []string{"PET111111", "PET222222"}}
	f.pets.allocator = alloc
	f.store.createErrs = []error{repository.ErrPetCodeTaken}

	pet, err := f.pets.Register(context.Background(), "owner-1", validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if pet.Code != "PET222222" {
		t.Errorf("code = %s, want PET222222", pet.Code)
	}
	if alloc.calls != 2 {
		t.Errorf("allocations = %d, want 2", alloc.calls)
	}
}

func TestPetService_RegisterGivesUpAfterSecondConflict(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	f.pets.allocator = &stubAllocator{codes: []string{"PET111111"}}
	f.store.createErrs = []error{repository.ErrPetCodeTaken, repository.ErrPetCodeTaken}

	_, err := f.pets.Register(context.Background(), "owner-1", validInput())
	if !errors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("expected ErrAllocationExhausted, got %v", err)
	}
	if len(f.store.pets) != 0 {
		t.Error("no pet should be stored")
	}
}

func TestPetService_RegisterStoreFailure(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	f.store.existsErr = errBoom

	_, err := f.pets.Register(context.Background(), "owner-1", validInput())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestPetService_RegisterValidation(t *testing.T) {
	t.Parallel()

	future := time.Now().Add(48 * time.Hour)
	long := string(bytes.Repeat([]byte("a"), maxNameLength+1))

	tests := []struct {
		name   string
		mutate func(*PetInput)
		want   error
	}{
		{"missing name", func(in *PetInput) { in.Name = "  " }, ErrPetNameRequired},
		{"missing species", func(in *PetInput) { in.Species = "" }, ErrSpeciesRequired},
		{"invalid sex", func(in *PetInput) { in.Sex = "other" }, ErrInvalidSex},
		{"future birth date", func(in *PetInput) { in.BirthDate = &future }, ErrBirthDateInFuture},
		{"name too long", func(in *PetInput) { in.Name = long }, ErrFieldTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newPetFixture(t)
			input := validInput()
			tt.mutate(&input)

			if _, err := f.pets.Register(context.Background(), "owner-1", input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPetService_RegisterUploadsImage(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	input := validInput()
	input.Image = &ImageUpload{Filename: "rex.jpg", Data: []byte{0xff, 0xd8, 0xff}}

	pet, err := f.pets.Register(context.Background(), "owner-1", input)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if pet.ImageURL != f.images.url {
		t.Errorf("image url = %q, want hosted url", pet.ImageURL)
	}

	f.images.err = errBoom
	if _, err := f.pets.Register(context.Background(), "owner-1", input); !errors.Is(err, ErrImageUploadFailed) {
		t.Fatalf("expected ErrImageUploadFailed, got %v", err)
	}
}

func TestPetService_RegisterImageWithoutUploader(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	f.pets.images = nil
	input := validInput()
	input.Image = &ImageUpload{Filename: "rex.jpg", Data: []byte{1}}

	if _, err := f.pets.Register(context.Background(), "owner-1", input); !errors.Is(err, ErrImageUploadOff) {
		t.Fatalf("expected ErrImageUploadOff, got %v", err)
	}
}

func TestPetService_AccessControl(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	ctx := context.Background()

	pet, err := f.pets.Register(ctx, "owner-1", validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	stranger := &model.Session{AccountID: "someone-else", Role: model.RoleUser}
	admin := &model.Session{AccountID: "admin-1", Role: model.RoleAdmin}

	if _, err := f.pets.Get(ctx, stranger, pet.Code); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger Get: expected ErrForbidden, got %v", err)
	}
	if _, err := f.pets.Get(ctx, nil, pet.Code); !errors.Is(err, ErrForbidden) {
		t.Errorf("anonymous Get: expected ErrForbidden, got %v", err)
	}
	if err := f.pets.Delete(ctx, stranger, pet.Code); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger Delete: expected ErrForbidden, got %v", err)
	}
	if _, err := f.pets.Get(ctx, admin, pet.Code); err != nil {
		t.Errorf("admin Get failed: %v", err)
	}
	if _, err := f.pets.Get(ctx, owner(), "PET000000"); !errors.Is(err, ErrPetNotFound) {
		t.Errorf("missing pet: expected ErrPetNotFound, got %v", err)
	}
}

func TestPetService_UpdateEvictsCache(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	ctx := context.Background()

	pet, err := f.pets.Register(ctx, "owner-1", validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, pet.Code); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	input := validInput()
	input.Name = "Thor"
	updated, err := f.pets.Update(ctx, owner(), pet.Code, input)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Code != pet.Code || updated.OwnerID != "owner-1" {
		t.Error("code and owner must not change")
	}

	res, err := f.resolver.Resolve(ctx, pet.Code)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.View.Pet.Name != "Thor" {
		t.Errorf("resolved name = %q, want Thor", res.View.Pet.Name)
	}
}

func TestPetService_DeleteRemovesPetAndHistory(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	ctx := context.Background()

	pet, err := f.pets.Register(ctx, "owner-1", validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	f.scans.events[pet.Code] = []*model.ScanEvent{{ID: "s1", PetCode: pet.Code}}

	if err := f.pets.Delete(ctx, owner(), pet.Code); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if len(f.scans.deleted) != 1 || f.scans.deleted[0] != pet.Code {
		t.Errorf("scan history should be deleted, got %v", f.scans.deleted)
	}
	res, err := f.resolver.Resolve(ctx, pet.Code)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Found() {
		t.Error("deleted pet must not resolve")
	}
}

func TestPetService_ListByOwner(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.pets.Register(ctx, "owner-1", validInput()); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	if _, err := f.pets.Register(ctx, "owner-2", validInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	pets, err := f.pets.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(pets) != 3 {
		t.Errorf("got %d pets, want 3", len(pets))
	}
}

func TestPetService_LookupURLAndQRCode(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	ctx := context.Background()

	if got := f.pets.LookupURL("PET123456"); got != "https://petlink.example/encontrar-pet?codigo=PET123456" {
		t.Errorf("LookupURL = %s", got)
	}

	pet, err := f.pets.Register(ctx, "owner-1", validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	png, err := f.pets.QRCode(ctx, owner(), pet.Code, 0)
	if err != nil {
		t.Fatalf("QRCode failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("QR code should be a PNG")
	}
}

func TestPetService_Scans(t *testing.T) {
	t.Parallel()

	f := newPetFixture(t)
	ctx := context.Background()

	pet, err := f.pets.Register(ctx, "owner-1", validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	at := pet.CreatedAt
	f.scans.events[pet.Code] = []*model.ScanEvent{
		{ID: "s1", PetCode: pet.Code, VisitorHash: "v1", ScannedAt: at.Add(time.Hour)},
		{ID: "s2", PetCode: pet.Code, VisitorHash: "v1", ScannedAt: at.Add(time.Minute)},
		{ID: "s3", PetCode: pet.Code, VisitorHash: "v2", ScannedAt: at},
		// Recorded for an earlier pet that held the same code.
		{ID: "s0", PetCode: pet.Code, VisitorHash: "v3", ScannedAt: at.Add(-time.Hour)},
	}

	summary, err := f.pets.Scans(ctx, owner(), pet.Code)
	if err != nil {
		t.Fatalf("Scans failed: %v", err)
	}
	if summary.Total != 3 || summary.UniqueVisitors != 2 {
		t.Errorf("summary = total %d unique %d, want 3/2", summary.Total, summary.UniqueVisitors)
	}
}

func TestPetService_WriteDuringLookupIsNotOverwritten(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(f *petFixture, code string) error
		check func(t *testing.T, res Resolution)
	}{
		{
			name: "delete",
			write: func(f *petFixture, code string) error {
				return f.pets.Delete(context.Background(), owner(), code)
			},
			check: func(t *testing.T, res Resolution) {
				if res.Found() {
					t.Errorf("deleted pet still resolves with owner phone %q", res.View.Owner.Phone)
				}
			},
		},
		{
			name: "update",
			write: func(f *petFixture, code string) error {
				in := validInput()
				in.Name = "Thor"
				_, err := f.pets.Update(context.Background(), owner(), code, in)
				return err
			},
			check: func(t *testing.T, res Resolution) {
				if !res.Found() || res.View.Pet.Name != "Thor" {
					t.Errorf("lookup after update shows %+v, want Thor", res.View)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newPetFixture(t)
			ctx := context.Background()

			pet, err := f.pets.Register(ctx, "owner-1", validInput())
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			// Start from a cold cache so the lookup reads the store.
			if err := f.cache.DeletePet(ctx, pet.Code); err != nil {
				t.Fatalf("evict: %v", err)
			}

			// The owner writes after the lookup read the store but before
			// it backfilled the cache.
			var writeErr error
			f.store.mu.Lock()
			f.store.afterGetPet = func() { writeErr = tt.write(f, pet.Code) }
			f.store.mu.Unlock()

			if _, err := f.resolver.Resolve(ctx, pet.Code); err != nil {
				t.Fatalf("racing Resolve: %v", err)
			}
			if writeErr != nil {
				t.Fatalf("owner write: %v", writeErr)
			}

			res, err := f.resolver.Resolve(ctx, pet.Code)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			tt.check(t, res)
		})
	}
}
