package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/repository"
)

// CampaignStore is the campaign persistence used by CampaignService.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*model.Campaign, error)
	UpdateCampaign(ctx context.Context, c *model.Campaign) error
	DeleteCampaign(ctx context.Context, id string) error
}

// CampaignService manages campaign listings. Writes require an admin session.
type CampaignService struct {
	store  CampaignStore
	logger *slog.Logger
	now    func() time.Time
}

// NewCampaignService creates a new CampaignService.
func NewCampaignService(store CampaignStore, logger *slog.Logger) *CampaignService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignService{
		store:  store,
		logger: logger.With("component", "service.campaign"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CampaignInput carries the editable campaign fields.
type CampaignInput struct {
	Title       string
	Date        string
	Location    string
	Description string
	MoreInfo    string
}

func (in *CampaignInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	in.MoreInfo = strings.TrimSpace(in.MoreInfo)

	if in.Title == "" {
		return ErrTitleRequired
	}
	if len(in.Title) > maxNameLength*2 || len(in.Description) > maxDescriptionLength || len(in.MoreInfo) > maxDescriptionLength {
		return ErrFieldTooLong
	}
	return nil
}

// List returns all campaigns, newest first.
func (s *CampaignService) List(ctx context.Context) ([]*model.Campaign, error) {
	campaigns, err := s.store.ListCampaigns(ctx)
	if err != nil {
		return nil, storeError("list campaigns", err)
	}
	return campaigns, nil
}

// Get returns one campaign.
func (s *CampaignService) Get(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, storeError("get campaign", err)
	}
	return c, nil
}

// Create adds a campaign.
func (s *CampaignService) Create(ctx context.Context, actor *model.Session, input CampaignInput) (*model.Campaign, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := input.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &model.Campaign{
		ID:          ulid.Make().String(),
		Title:       input.Title,
		Date:        input.Date,
		Location:    input.Location,
		Description: input.Description,
		MoreInfo:    input.MoreInfo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return nil, storeError("create campaign", err)
	}

	s.logger.Info("campaign_created", "campaign_id", c.ID, "account_id", actor.AccountID)
	return c, nil
}

// Update overwrites a campaign's fields.
func (s *CampaignService) Update(ctx context.Context, actor *model.Session, id string, input CampaignInput) (*model.Campaign, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := input.normalize(); err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Title = input.Title
	c.Date = input.Date
	c.Location = input.Location
	c.Description = input.Description
	c.MoreInfo = input.MoreInfo
	c.UpdatedAt = s.now()

	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, storeError("update campaign", err)
	}

	return c, nil
}

// Delete removes a campaign.
func (s *CampaignService) Delete(ctx context.Context, actor *model.Session, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	if err := s.store.DeleteCampaign(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return ErrCampaignNotFound
		}
		return storeError("delete campaign", err)
	}

	s.logger.Info("campaign_deleted", "campaign_id", id, "account_id", actor.AccountID)
	return nil
}
