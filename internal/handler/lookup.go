package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petlink/petlink/internal/handler/dto"
	"github.com/petlink/petlink/internal/lookup"
	"github.com/petlink/petlink/internal/middleware"
	"github.com/petlink/petlink/internal/scan"
	"github.com/petlink/petlink/internal/service"
)

// Resolver resolves public pet codes; satisfied by *service.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, code string) (service.Resolution, error)
}

// ScanPublisher records successful lookups; satisfied by *scan.Publisher.
type ScanPublisher interface {
	PublishAsync(event scan.Payload)
}

// LookupHandlerDeps holds the dependencies of LookupHandler.
type LookupHandlerDeps struct {
	Resolver Resolver
	// Sessions applies last-request-wins per X-Lookup-Session. Optional.
	Sessions *lookup.Tracker[service.Resolution]
	// Publisher receives a scan event per found lookup. Optional.
	Publisher   ScanPublisher
	CountryCode string
	Logger      *slog.Logger
}

// LookupHandler serves the public "found a pet" lookup.
type LookupHandler struct {
	resolver    Resolver
	sessions    *lookup.Tracker[service.Resolution]
	publisher   ScanPublisher
	countryCode string
	logger      *slog.Logger
	now         func() time.Time
}

// NewLookupHandler creates a new LookupHandler.
func NewLookupHandler(deps LookupHandlerDeps) *LookupHandler {
	return &LookupHandler{
		resolver:    deps.Resolver,
		sessions:    deps.Sessions,
		publisher:   deps.Publisher,
		countryCode: deps.CountryCode,
		logger:      deps.Logger.With("component", "handler.lookup"),
		now:         time.Now,
	}
}

// Find handles GET /encontrar-pet?codigo=CODE, the URL printed on collars.
func (h *LookupHandler) Find(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, r.URL.Query().Get("codigo"))
}

// Get handles GET /api/v1/lookup/{code}.
func (h *LookupHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, chi.URLParam(r, "code"))
}

// Submit handles POST /api/v1/lookup with a typed-in code.
func (h *LookupHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.LookupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	h.lookup(w, r, req.Code)
}

// Current handles GET /api/v1/lookup: the result currently shown for the
// caller's lookup session. It answers 202 while a lookup is in flight and
// 204 when there is nothing to show.
func (h *LookupHandler) Current(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.sessionSlot(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "MISSING_SESSION", lookup.SessionHeader+" header is required")
		return
	}

	outcome, state := slot.Current()
	switch state {
	case lookup.Empty:
		w.WriteHeader(http.StatusNoContent)
		return
	case lookup.Pending:
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusAccepted, dto.LookupPendingResponse{Status: "pending", Code: outcome.Code})
		return
	}
	if outcome.Err != nil {
		handleServiceError(w, h.logger, outcome.Err)
		return
	}
	h.render(w, outcome.Value)
}

// Dismiss handles DELETE /api/v1/lookup: drops the session's result and
// discards any lookup still in flight.
func (h *LookupHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(lookup.SessionHeader)
	if h.sessions == nil || strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "MISSING_SESSION", lookup.SessionHeader+" header is required")
		return
	}
	h.sessions.Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LookupHandler) lookup(w http.ResponseWriter, r *http.Request, code string) {
	code = strings.TrimSpace(code)
	resolve := h.resolver.Resolve
	rejected := middleware.ValidateLookupCode(code)
	if rejected != nil {
		// Cannot be a pet code; answer like any unknown code without a
		// store call. It still takes the session slot, so it replaces
		// whatever lookup the session had in flight.
		h.logger.Debug("lookup_rejected", "reason", rejected.Error())
		resolve = notFound
	}

	var (
		res service.Resolution
		err error
	)
	if slot, ok := h.sessionSlot(r); ok {
		res, err = slot.Run(r.Context(), code, resolve)
	} else {
		res, err = resolve(r.Context(), code)
	}

	switch {
	case errors.Is(err, lookup.ErrSuperseded):
		h.logger.Debug("lookup_superseded", "code", code)
		writeError(w, http.StatusConflict, "LOOKUP_SUPERSEDED", "A newer lookup replaced this one")
		return
	case errors.Is(err, lookup.ErrDismissed):
		h.logger.Debug("lookup_dismissed", "code", code)
		writeError(w, http.StatusConflict, "LOOKUP_DISMISSED", "The lookup was dismissed")
		return
	case r.Context().Err() != nil:
		// Client went away; nobody is left to answer.
		h.logger.Debug("lookup_cancelled", "code", code)
		return
	case err != nil:
		handleServiceError(w, h.logger, err)
		return
	}

	switch {
	case res.Found():
		h.publishScan(r, res)
	case rejected == nil:
		h.logger.Info("lookup_not_found", "code", code)
	}
	h.render(w, res)
}

func (h *LookupHandler) render(w http.ResponseWriter, res service.Resolution) {
	if !res.Found() {
		writeNotFound(w)
		return
	}

	link, err := service.BuildContactLink(res.View, h.countryCode)
	if err != nil && !errors.Is(err, service.ErrNoContactAvailable) {
		handleServiceError(w, h.logger, err)
		return
	}

	// Owner contact details must not be cached by intermediaries.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, dto.ToLookupResponse(res.Code, res.View, link))
}

func (h *LookupHandler) publishScan(r *http.Request, res service.Resolution) {
	if h.publisher == nil {
		return
	}
	h.publisher.PublishAsync(scan.NewPayload(
		res.View.Pet.Code,
		middleware.ClientIP(r),
		r.Referer(),
		r.UserAgent(),
		r.Header.Get("CF-IPCountry"),
		h.now(),
	))
}

func (h *LookupHandler) sessionSlot(r *http.Request) (*lookup.Slot[service.Resolution], bool) {
	if h.sessions == nil {
		return nil, false
	}
	return h.sessions.Slot(r.Header.Get(lookup.SessionHeader))
}

func notFound(_ context.Context, code string) (service.Resolution, error) {
	return service.Resolution{Status: service.ResolutionNotFound, Code: code}, nil
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "PET_NOT_FOUND", "pet not found, verify the code")
}
