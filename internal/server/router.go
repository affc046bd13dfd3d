package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/petlink/petlink/internal/handler"
	"github.com/petlink/petlink/internal/middleware"
)

// RouterDeps holds everything the route table needs.
type RouterDeps struct {
	Logger      *slog.Logger
	PrintStack  bool
	Security    middleware.SecurityConfig
	CORS        middleware.CORSConfig
	MaxBodySize int64
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
	// Observer records per-route HTTP metrics. Optional.
	Observer middleware.HTTPObserver

	Root      *handler.Handler
	Health    *handler.HealthHandler
	Metrics   *handler.MetricsHandler
	Accounts  *handler.AccountHandler
	Pets      *handler.PetHandler
	Lookup    *handler.LookupHandler
	Campaigns *handler.CampaignHandler
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recoverer(d.Logger, d.PrintStack))
	if d.Observer != nil {
		r.Use(middleware.Metrics(d.Observer))
	}
	r.Use(middleware.Security(d.Security))
	r.Use(middleware.CORS(d.CORS))
	r.Use(middleware.MaxBodySize(d.MaxBodySize))

	// Probes and metrics (no auth required)
	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics.Metrics)
	}

	r.Get("/", d.Root.Index)

	// Collar QR codes point here.
	r.With(middleware.RateLimitIP(d.RateLimit)).Get("/encontrar-pet", d.Lookup.Find)

	requireAuth := middleware.Auth(d.Auth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.Accounts.Register)
			r.With(middleware.RateLimitLogin(d.RateLimit)).Post("/login", d.Accounts.Login)
		})

		// Public lookup, rate limited per IP
		r.Route("/lookup", func(r chi.Router) {
			r.Use(middleware.RateLimitIP(d.RateLimit))
			r.Get("/", d.Lookup.Current)
			r.Post("/", d.Lookup.Submit)
			r.Delete("/", d.Lookup.Dismiss)
			r.Get("/{code}", d.Lookup.Get)
		})

		// Campaign board: public reads, admin writes
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", d.Campaigns.List)
			r.Get("/{id}", d.Campaigns.Get)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, middleware.RequireAdmin())
				r.Post("/", d.Campaigns.Create)
				r.Put("/{id}", d.Campaigns.Update)
				r.Delete("/{id}", d.Campaigns.Delete)
			})
		})

		// Owner area
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", d.Accounts.Me)
			r.Patch("/me", d.Accounts.UpdateMe)

			r.Route("/pets", func(r chi.Router) {
				r.Get("/", d.Pets.List)
				r.Post("/", d.Pets.Create)
				r.Get("/{code}", d.Pets.Get)
				r.Put("/{code}", d.Pets.Update)
				r.Delete("/{code}", d.Pets.Delete)
				r.Get("/{code}/qrcode.png", d.Pets.QRCode)
				r.Get("/{code}/scans", d.Pets.Scans)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(d.Root.NotFound)
	r.MethodNotAllowed(d.Root.MethodNotAllowed)

	return r
}
