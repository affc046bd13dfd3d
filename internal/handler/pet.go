package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/petlink/petlink/internal/auth"
	"github.com/petlink/petlink/internal/handler/dto"
	"github.com/petlink/petlink/internal/middleware"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/service"
)

const (
	// imageFormField is the multipart field carrying the pet photo.
	imageFormField = "image"
	// multipartMemory is how much of a multipart body is kept in memory.
	multipartMemory = 8 << 20

	minQRSize = 128
	maxQRSize = 1024
)

var errInvalidBirthDate = errors.New("birth_date must be a YYYY-MM-DD date")

// Pets is the owner-side pet surface; satisfied by *service.PetService.
type Pets interface {
	Register(ctx context.Context, ownerID string, input service.PetInput) (*model.Pet, error)
	Get(ctx context.Context, actor *model.Session, code string) (*model.Pet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Pet, error)
	Update(ctx context.Context, actor *model.Session, code string, input service.PetInput) (*model.Pet, error)
	Delete(ctx context.Context, actor *model.Session, code string) error
	LookupURL(code string) string
	QRCode(ctx context.Context, actor *model.Session, code string, size int) ([]byte, error)
	Scans(ctx context.Context, actor *model.Session, code string) (*model.ScanSummary, error)
}

// PetHandler handles HTTP requests for an owner's pets.
type PetHandler struct {
	svc    Pets
	logger *slog.Logger
}

// NewPetHandler creates a new PetHandler.
func NewPetHandler(svc Pets, logger *slog.Logger) *PetHandler {
	return &PetHandler{
		svc:    svc,
		logger: logger.With("component", "handler.pet"),
	}
}

// Create handles POST /api/v1/pets. Accepts JSON, or multipart/form-data
// with the same fields plus an "image" file.
func (h *PetHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.readInput(w, r)
	if !ok {
		return
	}

	pet, err := h.svc.Register(r.Context(), auth.AccountIDFromContext(r.Context()), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/pets/"+pet.Code)
	writeJSON(w, http.StatusCreated, dto.ToPetResponse(pet, h.svc.LookupURL(pet.Code)))
}

// List handles GET /api/v1/pets.
func (h *PetHandler) List(w http.ResponseWriter, r *http.Request) {
	pets, err := h.svc.ListByOwner(r.Context(), auth.AccountIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := dto.ListResponse[*dto.PetResponse]{Data: make([]*dto.PetResponse, 0, len(pets))}
	for _, pet := range pets {
		resp.Data = append(resp.Data, dto.ToPetResponse(pet, h.svc.LookupURL(pet.Code)))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/pets/{code}.
func (h *PetHandler) Get(w http.ResponseWriter, r *http.Request) {
	pet, err := h.svc.Get(r.Context(), auth.SessionFromContext(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPetResponse(pet, h.svc.LookupURL(pet.Code)))
}

// Update handles PUT /api/v1/pets/{code}. The body replaces every editable
// field; the photo is kept when neither image nor image_url is sent.
func (h *PetHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, ok := h.readInput(w, r)
	if !ok {
		return
	}

	pet, err := h.svc.Update(r.Context(), auth.SessionFromContext(r.Context()), chi.URLParam(r, "code"), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPetResponse(pet, h.svc.LookupURL(pet.Code)))
}

// Delete handles DELETE /api/v1/pets/{code}.
func (h *PetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.SessionFromContext(r.Context()), chi.URLParam(r, "code")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QRCode handles GET /api/v1/pets/{code}/qrcode.png?size=N.
func (h *PetHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	size := service.DefaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < minQRSize || parsed > maxQRSize {
			writeError(w, http.StatusBadRequest, "INVALID_SIZE",
				"size must be between "+strconv.Itoa(minQRSize)+" and "+strconv.Itoa(maxQRSize))
			return
		}
		size = parsed
	}

	png, err := h.svc.QRCode(r.Context(), auth.SessionFromContext(r.Context()), chi.URLParam(r, "code"), size)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Scans handles GET /api/v1/pets/{code}/scans.
func (h *PetHandler) Scans(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Scans(r.Context(), auth.SessionFromContext(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToScanSummaryResponse(summary))
}

// readInput decodes a JSON or multipart pet body. On failure the error
// response has been written and ok is false.
func (h *PetHandler) readInput(w http.ResponseWriter, r *http.Request) (input service.PetInput, ok bool) {
	var req dto.PetRequest
	var image *service.ImageUpload

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		req, image, err = readMultipartPet(r)
		if err != nil {
			if isTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			} else {
				writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form")
			}
			return input, false
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return input, false
	}

	input, err := toPetInput(req, image)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return input, false
	}
	return input, true
}

func readMultipartPet(r *http.Request) (dto.PetRequest, *service.ImageUpload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return dto.PetRequest{}, nil, err
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := dto.PetRequest{
		Name:        r.FormValue("name"),
		Species:     r.FormValue("species"),
		Breed:       r.FormValue("breed"),
		Color:       r.FormValue("color"),
		Sex:         r.FormValue("sex"),
		BirthDate:   r.FormValue("birth_date"),
		Description: r.FormValue("description"),
		ImageURL:    r.FormValue("image_url"),
	}

	file, header, err := r.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, nil, err
	}
	return req, &service.ImageUpload{Filename: header.Filename, Data: data}, nil
}

func toPetInput(req dto.PetRequest, image *service.ImageUpload) (service.PetInput, error) {
	birthDate, err := model.ParseBirthDate(strings.TrimSpace(req.BirthDate))
	if err != nil {
		return service.PetInput{}, errInvalidBirthDate
	}
	if err := middleware.ValidateImageURL(strings.TrimSpace(req.ImageURL)); err != nil {
		return service.PetInput{}, err
	}

	return service.PetInput{
		Name:        req.Name,
		Species:     req.Species,
		Breed:       req.Breed,
		Color:       req.Color,
		Sex:         model.Sex(strings.ToLower(strings.TrimSpace(req.Sex))),
		BirthDate:   birthDate,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Image:       image,
	}, nil
}
