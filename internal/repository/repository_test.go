package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/testutil"
)

func TestRepository_CreateAndGetPet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	owner := testutil.NewTestAccount(t)
	if err := repo.CreateAccount(ctx, owner); err != nil {
		t.Fatalf("create account: %v", err)
	}

	pet := testutil.NewTestPet(t, owner.ID)
	birth := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	pet.BirthDate = &birth
	if err := repo.CreatePet(ctx, pet); err != nil {
		t.Fatalf("create pet: %v", err)
	}

	got, err := repo.GetPet(ctx, pet.Code)
	if err != nil {
		t.Fatalf("get pet: %v", err)
	}
	if got.Name != pet.Name || got.OwnerID != owner.ID || got.Sex != pet.Sex {
		t.Fatalf("unexpected pet: %+v", got)
	}
	if model.FormatBirthDate(got.BirthDate) != "2020-01-02" {
		t.Fatalf("birth date = %v, want 2020-01-02", got.BirthDate)
	}

	exists, err := repo.PetCodeExists(ctx, pet.Code)
	if err != nil {
		t.Fatalf("pet code exists: %v", err)
	}
	if !exists {
		t.Fatal("expected pet code to exist")
	}

	duplicate := testutil.NewTestPet(t, owner.ID)
	duplicate.Code = pet.Code
	if err := repo.CreatePet(ctx, duplicate); !errors.Is(err, ErrPetCodeTaken) {
		t.Fatalf("expected ErrPetCodeTaken, got %v", err)
	}
}

func TestRepository_GetPet_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	if _, err := repo.GetPet(ctx, "PET000000"); !errors.Is(err, ErrPetNotFound) {
		t.Fatalf("expected ErrPetNotFound, got %v", err)
	}
}

func TestRepository_UpdateAndDeletePet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	pet := testutil.NewTestPet(t, "owner-1")
	if err := repo.CreatePet(ctx, pet); err != nil {
		t.Fatalf("create pet: %v", err)
	}

	pet.Name = "Rex II"
	pet.Description = "coleira vermelha"
	pet.UpdatedAt = time.Now().UTC()
	if err := repo.UpdatePet(ctx, pet); err != nil {
		t.Fatalf("update pet: %v", err)
	}

	got, err := repo.GetPet(ctx, pet.Code)
	if err != nil {
		t.Fatalf("get pet: %v", err)
	}
	if got.Name != "Rex II" || got.Description != "coleira vermelha" {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := repo.DeletePet(ctx, pet.Code); err != nil {
		t.Fatalf("delete pet: %v", err)
	}
	if err := repo.DeletePet(ctx, pet.Code); !errors.Is(err, ErrPetNotFound) {
		t.Fatalf("expected ErrPetNotFound on second delete, got %v", err)
	}

	exists, err := repo.PetCodeExists(ctx, pet.Code)
	if err != nil {
		t.Fatalf("pet code exists: %v", err)
	}
	if exists {
		t.Fatal("deleted code should be free")
	}
}

func TestRepository_ListPetsByOwner(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	for i := 0; i < 3; i++ {
		pet := testutil.NewTestPet(t, "owner-a")
		pet.Code = []string{"PET100001", "PET100002", "PET100003"}[i]
		if err := repo.CreatePet(ctx, pet); err != nil {
			t.Fatalf("create pet %d: %v", i, err)
		}
	}
	other := testutil.NewTestPet(t, "owner-b")
	other.Code = "PET200001"
	if err := repo.CreatePet(ctx, other); err != nil {
		t.Fatalf("create other pet: %v", err)
	}

	pets, err := repo.ListPetsByOwner(ctx, "owner-a")
	if err != nil {
		t.Fatalf("list pets: %v", err)
	}
	if len(pets) != 3 {
		t.Fatalf("expected 3 pets, got %d", len(pets))
	}

	none, err := repo.ListPetsByOwner(ctx, "nobody")
	if err != nil {
		t.Fatalf("list pets: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", none)
	}
}

func TestRepository_Accounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	account := testutil.NewTestAccount(t)
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}

	dup := testutil.NewTestAccount(t)
	dup.Email = account.Email
	if err := repo.CreateAccount(ctx, dup); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	byEmail, err := repo.GetAccountByEmail(ctx, account.Email)
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != account.ID {
		t.Fatalf("expected id %s, got %s", account.ID, byEmail.ID)
	}

	account.Phone = "21 97777-6666"
	account.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateAccountProfile(ctx, account); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if err := repo.SetAccountRole(ctx, account.ID, model.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}

	got, err := repo.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Phone != "21 97777-6666" || got.Role != model.RoleAdmin {
		t.Fatalf("unexpected account: %+v", got)
	}

	if _, err := repo.GetAccountByID(ctx, "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRepository_Campaigns(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	now := time.Now().UTC()
	c := &model.Campaign{
		ID:        testutil.UniqueID("camp"),
		Title:     "Feira de adoção",
		Date:      "12/10",
		Location:  "Praça central",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	c.Title = "Feira de adoção de outubro"
	if err := repo.UpdateCampaign(ctx, c); err != nil {
		t.Fatalf("update campaign: %v", err)
	}

	list, err := repo.ListCampaigns(ctx)
	if err != nil {
		t.Fatalf("list campaigns: %v", err)
	}
	if len(list) != 1 || list[0].Title != c.Title {
		t.Fatalf("unexpected campaigns: %+v", list)
	}

	if err := repo.DeleteCampaign(ctx, c.ID); err != nil {
		t.Fatalf("delete campaign: %v", err)
	}
	if _, err := repo.GetCampaign(ctx, c.ID); !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestScanEventRepository_BulkInsertIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)
	scans := NewScanEventRepository(repo)

	now := time.Now().UTC()
	events := []*model.ScanEvent{
		{ID: "scan-1", EventID: "1-0", PetCode: "PET123456", VisitorHash: "v1", ScannedAt: now},
		{ID: "scan-2", EventID: "2-0", PetCode: "PET123456", VisitorHash: "v2", ScannedAt: now.Add(time.Second)},
		// Left over from an earlier pet that held the code.
		{ID: "scan-0", EventID: "0-0", PetCode: "PET123456", VisitorHash: "v0", ScannedAt: now.Add(-time.Hour)},
	}

	if err := scans.BulkInsert(ctx, events); err != nil {
		t.Fatalf("bulk insert: %v", err)
	}
	// Redelivery of the same stream entries must not duplicate rows.
	if err := scans.BulkInsert(ctx, events); err != nil {
		t.Fatalf("bulk insert replay: %v", err)
	}

	got, err := scans.ListRecent(ctx, "PET123456", now, 50)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(got))
	}
	if got[0].ID != "scan-2" {
		t.Fatalf("expected newest first, got %s", got[0].ID)
	}
}

func newTestRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if _, err := Migrate(dbURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := testutil.TruncateTables(ctx, repo.Pool(), "pets", "accounts", "campaigns", "pet_scans"); err != nil {
		t.Fatalf("reset tables: %v", err)
	}

	return repo
}
