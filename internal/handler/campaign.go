package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petlink/petlink/internal/auth"
	"github.com/petlink/petlink/internal/handler/dto"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/service"
)

// Campaigns is the campaign surface; satisfied by *service.CampaignService.
type Campaigns interface {
	List(ctx context.Context) ([]*model.Campaign, error)
	Get(ctx context.Context, id string) (*model.Campaign, error)
	Create(ctx context.Context, actor *model.Session, input service.CampaignInput) (*model.Campaign, error)
	Update(ctx context.Context, actor *model.Session, id string, input service.CampaignInput) (*model.Campaign, error)
	Delete(ctx context.Context, actor *model.Session, id string) error
}

// CampaignHandler serves the public campaign board and its admin writes.
type CampaignHandler struct {
	svc    Campaigns
	logger *slog.Logger
}

// NewCampaignHandler creates a new CampaignHandler.
func NewCampaignHandler(svc Campaigns, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		svc:    svc,
		logger: logger.With("component", "handler.campaign"),
	}
}

// List handles GET /api/v1/campaigns.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.svc.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := dto.ListResponse[*dto.CampaignResponse]{Data: make([]*dto.CampaignResponse, 0, len(campaigns))}
	for _, c := range campaigns {
		resp.Data = append(resp.Data, dto.ToCampaignResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/campaigns/{id}.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToCampaignResponse(c))
}

// Create handles POST /api/v1/campaigns.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	c, err := h.svc.Create(r.Context(), auth.SessionFromContext(r.Context()), toCampaignInput(req))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/campaigns/"+c.ID)
	writeJSON(w, http.StatusCreated, dto.ToCampaignResponse(c))
}

// Update handles PUT /api/v1/campaigns/{id}.
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.CampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	c, err := h.svc.Update(r.Context(), auth.SessionFromContext(r.Context()), chi.URLParam(r, "id"), toCampaignInput(req))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToCampaignResponse(c))
}

// Delete handles DELETE /api/v1/campaigns/{id}.
func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.SessionFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toCampaignInput(req dto.CampaignRequest) service.CampaignInput {
	return service.CampaignInput{
		Title:       req.Title,
		Date:        req.Date,
		Location:    req.Location,
		Description: req.Description,
		MoreInfo:    req.MoreInfo,
	}
}
