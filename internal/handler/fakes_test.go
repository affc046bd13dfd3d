package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/petlink/petlink/internal/auth"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/scan"
	"github.com/petlink/petlink/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withSession(r *http.Request, accountID string, role model.Role) *http.Request {
	return r.WithContext(auth.ContextWithSession(r.Context(), &model.Session{AccountID: accountID, Role: role}))
}

// fakeResolver answers from a fixed table. Codes listed in block wait until
// released or cancelled.
type fakeResolver struct {
	mu      sync.Mutex
	results map[string]service.Resolution
	err     error
	calls   []string
	block   map[string]chan struct{}
	started chan string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		results: make(map[string]service.Resolution),
		block:   make(map[string]chan struct{}),
		started: make(chan string, 8),
	}
}

func (f *fakeResolver) addPet(code, name, phone, email string) {
	f.results[code] = service.Resolution{
		Status: service.ResolutionFound,
		Code:   code,
		View: &model.ResolvedView{
			Pet:   model.Pet{Code: code, Name: name, Species: "dog", Sex: model.SexMale},
			Owner: model.Contact{Name: "Maria", Phone: phone, Email: email},
		},
	}
}

func (f *fakeResolver) Resolve(ctx context.Context, code string) (service.Resolution, error) {
	f.mu.Lock()
	f.calls = append(f.calls, code)
	gate := f.block[code]
	res, ok := f.results[code]
	err := f.err
	f.mu.Unlock()

	f.started <- code
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return service.Resolution{Code: code}, ctx.Err()
		}
	}

	if err != nil {
		return service.Resolution{Code: code}, err
	}
	if !ok {
		return service.Resolution{Status: service.ResolutionNotFound, Code: code}, nil
	}
	return res, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []scan.Payload
}

func (f *fakePublisher) PublishAsync(event scan.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) published() []scan.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scan.Payload(nil), f.events...)
}

// fakePets records the last call and returns canned values.
type fakePets struct {
	pet      *model.Pet
	pets     []*model.Pet
	summary  *model.ScanSummary
	err      error
	ownerID  string
	actor    *model.Session
	code     string
	input    service.PetInput
	qrSize   int
	deleted  bool
	qrBytes  []byte
	register int
}

func (f *fakePets) Register(ctx context.Context, ownerID string, input service.PetInput) (*model.Pet, error) {
	f.register++
	f.ownerID = ownerID
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	pet := &model.Pet{
		Code:      "PET123456",
		Name:      input.Name,
		Species:   input.Species,
		Sex:       input.Sex,
		BirthDate: input.BirthDate,
		ImageURL:  input.ImageURL,
		OwnerID:   ownerID,
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
	return pet, nil
}

func (f *fakePets) Get(ctx context.Context, actor *model.Session, code string) (*model.Pet, error) {
	f.actor, f.code = actor, code
	return f.pet, f.err
}

func (f *fakePets) ListByOwner(ctx context.Context, ownerID string) ([]*model.Pet, error) {
	f.ownerID = ownerID
	return f.pets, f.err
}

func (f *fakePets) Update(ctx context.Context, actor *model.Session, code string, input service.PetInput) (*model.Pet, error) {
	f.actor, f.code, f.input = actor, code, input
	return f.pet, f.err
}

func (f *fakePets) Delete(ctx context.Context, actor *model.Session, code string) error {
	f.actor, f.code = actor, code
	if f.err == nil {
		f.deleted = true
	}
	return f.err
}

func (f *fakePets) LookupURL(code string) string {
	return "https://petlink.example/encontrar-pet?codigo=" + code
}

func (f *fakePets) QRCode(ctx context.Context, actor *model.Session, code string, size int) ([]byte, error) {
	f.actor, f.code, f.qrSize = actor, code, size
	return f.qrBytes, f.err
}

func (f *fakePets) Scans(ctx context.Context, actor *model.Session, code string) (*model.ScanSummary, error) {
	f.actor, f.code = actor, code
	return f.summary, f.err
}

type fakeAccounts struct {
	account       *model.Account
	err           error
	registered    *service.RegisterInput
	profileID     string
	profileUpdate service.UpdateProfileInput
}

func (f *fakeAccounts) Register(ctx context.Context, input service.RegisterInput) (*model.Account, error) {
	f.registered = &input
	if f.err != nil {
		return nil, f.err
	}
	return &model.Account{ID: "acc-1", Name: input.Name, Email: input.Email, Phone: input.Phone, Role: model.RoleUser}, nil
}

func (f *fakeAccounts) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.LoginResult{Token: "signed.jwt.token", ExpiresAt: time.Unix(1_700_086_400, 0).UTC(), Account: f.account}, nil
}

func (f *fakeAccounts) Profile(ctx context.Context, id string) (*model.Account, error) {
	f.profileID = id
	return f.account, f.err
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, id string, input service.UpdateProfileInput) (*model.Account, error) {
	f.profileID = id
	f.profileUpdate = input
	return f.account, f.err
}

type fakeCampaigns struct {
	campaigns []*model.Campaign
	err       error
	actor     *model.Session
	input     service.CampaignInput
	id        string
}

func (f *fakeCampaigns) List(ctx context.Context) ([]*model.Campaign, error) {
	return f.campaigns, f.err
}

func (f *fakeCampaigns) Get(ctx context.Context, id string) (*model.Campaign, error) {
	f.id = id
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, service.ErrCampaignNotFound
}

func (f *fakeCampaigns) Create(ctx context.Context, actor *model.Session, input service.CampaignInput) (*model.Campaign, error) {
	f.actor, f.input = actor, input
	if f.err != nil {
		return nil, f.err
	}
	if !actor.IsAdmin() {
		return nil, service.ErrForbidden
	}
	return &model.Campaign{ID: "camp-1", Title: input.Title, Date: input.Date}, nil
}

func (f *fakeCampaigns) Update(ctx context.Context, actor *model.Session, id string, input service.CampaignInput) (*model.Campaign, error) {
	f.actor, f.id, f.input = actor, id, input
	if f.err != nil {
		return nil, f.err
	}
	return &model.Campaign{ID: id, Title: input.Title}, nil
}

func (f *fakeCampaigns) Delete(ctx context.Context, actor *model.Session, id string) error {
	f.actor, f.id = actor, id
	return f.err
}

var errBoom = errors.New("boom")
